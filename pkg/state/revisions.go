// SPDX-License-Identifier: Apache-2.0

package state

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pgrev/pgrev/pkg/db"
)

// Revision is the database record of an applied (or partially applied)
// revision, identified by its hash triple.
type Revision struct {
	Number        int       `json:"revision"`
	MigrationHash []byte    `json:"migration_hash"`
	SchemaHash    []byte    `json:"schema_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// UpsertRevision records a revision the first time its first phase runs.
// Re-running a revision whose hashes match the recorded row is a no-op, and a
// matching tombstoned row is resurrected; the same number with different
// hashes is a conflict requiring operator intervention.
func (s *State) UpsertRevision(ctx context.Context, rev Revision) (*Revision, error) {
	_, err := s.pgConn.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.revisions (revision, migration_hash, schema_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (revision, migration_hash, schema_hash) DO UPDATE SET is_deleted = false`, s.qualified()),
		rev.Number, rev.MigrationHash, rev.SchemaHash)
	// a violation of the live-number index means a live row with different
	// hashes is in the way; report it as a conflict below
	if err != nil && !db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("unable to upsert revision %d: %w", rev.Number, err)
	}

	stored, err := s.getRevision(ctx, rev.Number)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(stored.MigrationHash, rev.MigrationHash) || !bytes.Equal(stored.SchemaHash, rev.SchemaHash) {
		return nil, RevisionConflictError{
			Revision:          rev.Number,
			DiskMigrationHash: rev.MigrationHash,
			DiskSchemaHash:    rev.SchemaHash,
			DBMigrationHash:   stored.MigrationHash,
			DBSchemaHash:      stored.SchemaHash,
		}
	}
	return stored, nil
}

func (s *State) getRevision(ctx context.Context, number int) (*Revision, error) {
	var rev Revision
	err := s.pgConn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT revision, migration_hash, schema_hash, created_at
		FROM %s.revisions
		WHERE revision = $1 AND NOT is_deleted`, s.qualified()),
		number).
		Scan(&rev.Number, &rev.MigrationHash, &rev.SchemaHash, &rev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("unable to read revision %d: %w", number, err)
	}
	return &rev, nil
}

// DeleteRevision tombstones a fully reverted revision. The row stays for
// audit history, but the revision number becomes free for a live row again,
// so a re-upgrade may carry different hashes.
func (s *State) DeleteRevision(ctx context.Context, number int) error {
	_, err := s.pgConn.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s.revisions SET is_deleted = true
		WHERE revision = $1 AND NOT is_deleted`, s.qualified()),
		number)
	if err != nil {
		return fmt.Errorf("unable to delete revision %d: %w", number, err)
	}
	return nil
}

// Revisions returns all live revisions keyed by number.
func (s *State) Revisions(ctx context.Context) (map[int]Revision, error) {
	rows, err := s.pgConn.QueryContext(ctx, fmt.Sprintf(`
		SELECT revision, migration_hash, schema_hash, created_at
		FROM %s.revisions
		WHERE NOT is_deleted
		ORDER BY revision`, s.qualified()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revs := make(map[int]Revision)
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.Number, &rev.MigrationHash, &rev.SchemaHash, &rev.CreatedAt); err != nil {
			return nil, err
		}
		revs[rev.Number] = rev
	}
	return revs, rows.Err()
}
