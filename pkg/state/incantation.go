// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/hex"
	"fmt"

	"github.com/lib/pq"
)

// Incantation returns the SQL an application executes on every new backend:
// it prepends the revision's shim schema to the search_path (so renamed
// columns resolve through the shim views) and upserts the backend into the
// connections registry.
func (s *State) Incantation(revision int, schemaHash []byte) string {
	return fmt.Sprintf(`SELECT set_config('search_path', '%[1]s,'||current_setting('search_path'), false);
INSERT INTO %[2]s.connections (pid, revision, schema_hash, backend_start)
VALUES (pg_backend_pid(), %[3]d, decode('%[4]s', 'hex'),
        (SELECT backend_start FROM pg_stat_activity WHERE pid = pg_backend_pid()))
ON CONFLICT (pid) DO UPDATE
SET revision = excluded.revision,
    schema_hash = excluded.schema_hash,
    backend_start = excluded.backend_start;
`,
		ShimSchemaName(revision),
		pq.QuoteIdentifier(s.schema),
		revision,
		hex.EncodeToString(schemaHash))
}
