// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"time"
)

// AppConnection is one live application backend, as registered by the
// connection incantation. Purely observational: operators use it to see which
// backends are pinned to which revision.
type AppConnection struct {
	PID          int       `json:"pid"`
	Revision     int       `json:"revision"`
	SchemaHash   []byte    `json:"schema_hash"`
	BackendStart time.Time `json:"backend_start"`
}

// Connections lists the registered application backends, most recent first.
// Rows whose pid no longer exists in pg_stat_activity are stale and excluded.
func (s *State) Connections(ctx context.Context) ([]AppConnection, error) {
	rows, err := s.pgConn.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.pid, c.revision, c.schema_hash, c.backend_start
		FROM %s.connections c
		JOIN pg_stat_activity a ON a.pid = c.pid AND a.backend_start = c.backend_start
		ORDER BY c.backend_start DESC`, s.qualified()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []AppConnection
	for rows.Next() {
		var c AppConnection
		if err := rows.Scan(&c.PID, &c.Revision, &c.SchemaHash, &c.BackendStart); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}
