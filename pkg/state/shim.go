// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// shimSchemaFormat names the per-revision schema holding rename shim views.
const shimSchemaFormat = "shim_%d"

// ShimSchemaName returns the shim schema name for a revision number.
func ShimSchemaName(revision int) string {
	return fmt.Sprintf(shimSchemaFormat, revision)
}

// CreateShimSchema creates the shim schema for a revision. The driver creates
// it before the revision's first phase and drops it once no phase can target
// it anymore.
func (s *State) CreateShimSchema(ctx context.Context, revision int) error {
	_, err := s.pgConn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s",
		pq.QuoteIdentifier(ShimSchemaName(revision))))
	return err
}

// DropShimSchema drops a revision's shim schema. The drop is deliberately
// non-cascading: the revision's own phases must have emptied the schema, and
// anything left behind is a bug worth failing on.
func (s *State) DropShimSchema(ctx context.Context, revision int) error {
	_, err := s.pgConn.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s",
		pq.QuoteIdentifier(ShimSchemaName(revision))))
	return err
}
