// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/pgrev/pgrev/pkg/changes"
)

// ErrNotInitialized is returned when the bookkeeping schema is missing.
// Only `pgrev init` recovers from it.
var ErrNotInitialized = errors.New("migrator schema is not initialized")

// ConcurrentMigratorError is returned when the one-unfinished-phase invariant
// rejects an audit insert: another migrator is already running.
type ConcurrentMigratorError struct {
	Index changes.PhaseIndex
}

func (e ConcurrentMigratorError) Error() string {
	return fmt.Sprintf("another migrator holds an unfinished phase; could not start %s", e.Index)
}

// RevisionConflictError is returned when the on-disk revision and the
// database disagree on a revision's hash triple.
type RevisionConflictError struct {
	Revision          int
	DiskMigrationHash []byte
	DiskSchemaHash    []byte
	DBMigrationHash   []byte
	DBSchemaHash      []byte
}

func (e RevisionConflictError) Error() string {
	return fmt.Sprintf("revision %d on disk (migration %s, schema %s) does not match the database record (migration %s, schema %s)",
		e.Revision,
		hex.EncodeToString(e.DiskMigrationHash),
		hex.EncodeToString(e.DiskSchemaHash),
		hex.EncodeToString(e.DBMigrationHash),
		hex.EncodeToString(e.DBSchemaHash))
}
