// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/db"
)

// Audit is one row of the migration audit log: a single execution attempt of
// a single phase, forward or reverting.
type Audit struct {
	ID         int64              `json:"id"`
	Index      changes.PhaseIndex `json:"index"`
	IsRevert   bool               `json:"is_revert"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at"`
}

// Finished reports whether the attempt reached its terminal state.
func (a *Audit) Finished() bool {
	return a.FinishedAt != nil
}

const auditColumns = "id, revision, migration_hash, schema_hash, pre_deploy, change, phase, is_revert, started_at, finished_at"

func scanAudit(row interface{ Scan(...any) error }) (*Audit, error) {
	var a Audit
	var finished sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.Index.Revision,
		&a.Index.MigrationHash,
		&a.Index.SchemaHash,
		&a.Index.PreDeploy,
		&a.Index.Change,
		&a.Index.Phase,
		&a.IsRevert,
		&a.StartedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		a.FinishedAt = &finished.Time
	}
	return &a, nil
}

// LatestAudit returns the most recent audit row, or nil if the log is empty.
func (s *State) LatestAudit(ctx context.Context) (*Audit, error) {
	row := s.pgConn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s.migration_audit
		ORDER BY id DESC
		LIMIT 1`, auditColumns, s.qualified()))

	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return audit, err
}

// LastFinished returns the most recent audit row whose phase completed.
func (s *State) LastFinished(ctx context.Context) (*Audit, error) {
	row := s.pgConn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s.migration_audit
		WHERE finished_at IS NOT NULL
		ORDER BY id DESC
		LIMIT 1`, auditColumns, s.qualified()))

	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return audit, err
}

// GetAudit locates the most recent attempt of a specific phase and direction.
func (s *State) GetAudit(ctx context.Context, index changes.PhaseIndex, isRevert bool) (*Audit, error) {
	row := s.pgConn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s.migration_audit
		WHERE revision = $1 AND pre_deploy = $2 AND change = $3 AND phase = $4 AND is_revert = $5
		ORDER BY id DESC
		LIMIT 1`, auditColumns, s.qualified()),
		index.Revision, index.PreDeploy, index.Change, index.Phase, isRevert)

	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no audit row for %s (revert=%v)", index, isRevert)
	}
	return audit, err
}

// StartPhase inserts the audit row that opens a phase attempt. Transactional
// phases pass their transaction as q so the row only becomes visible with the
// phase's own work; idempotent phases pass the plain connection and commit the
// row before touching the database.
//
// A unique violation here means another migrator holds the in-flight slot.
func (s *State) StartPhase(ctx context.Context, q db.Queryer, index changes.PhaseIndex, isRevert bool) (*Audit, error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.migration_audit
			(revision, migration_hash, schema_hash, pre_deploy, change, phase, is_revert, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING %s`, s.qualified(), auditColumns),
		index.Revision, index.MigrationHash, index.SchemaHash,
		index.PreDeploy, index.Change, index.Phase, isRevert)

	audit, err := scanAudit(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ConcurrentMigratorError{Index: index}
		}
		return nil, err
	}
	return audit, nil
}

// EndPhase closes an open attempt. It refuses to touch a row that is already
// terminal, which guards against a phase being committed twice.
func (s *State) EndPhase(ctx context.Context, q db.Queryer, audit *Audit) (*Audit, error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE %s.migration_audit
		SET finished_at = now()
		WHERE id = $1 AND finished_at IS NULL
		RETURNING %s`, s.qualified(), auditColumns),
		audit.ID)

	updated, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit row %d is already finished", audit.ID)
	}
	return updated, err
}
