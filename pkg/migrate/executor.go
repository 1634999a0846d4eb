// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

// runPhase executes one direction of one phase under its discipline and
// records the attempt in the audit log.
func (m *Migrate) runPhase(ctx context.Context, entry revisions.PhaseEntry, isRevert bool) error {
	dir := entry.Phase.Up
	if isRevert {
		dir = entry.Phase.Down
	}

	var err error
	switch dir.Discipline() {
	case changes.DisciplineTransactional:
		err = m.runTransactional(ctx, entry.Index, dir, isRevert)
	case changes.DisciplineIdempotent:
		err = m.runIdempotent(ctx, entry.Index, dir, isRevert, nil)
	default:
		err = fmt.Errorf("unknown discipline %v", dir.Discipline())
	}

	if err != nil {
		return PhaseFailureError{Index: entry.Index, IsRevert: isRevert, Err: err}
	}
	return nil
}

// runTransactional executes the direction's DDL in one transaction together
// with both audit writes. A failure rolls everything back, so the audit log
// never shows the attempt.
func (m *Migrate) runTransactional(ctx context.Context, index changes.PhaseIndex, dir changes.Direction, isRevert bool) error {
	shims := shimSchemas(index)

	return m.pgConn.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		audit, err := m.state.StartPhase(ctx, tx, index, isRevert)
		if err != nil {
			return err
		}

		stmts, err := dir.Statements(ctx, tx, shims)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		_, err = m.state.EndPhase(ctx, tx, audit)
		return err
	})
}

// runIdempotent executes the direction's DDL outside any transaction,
// bracketed by two committed audit writes. The open audit row between them
// holds the single in-flight slot; a crash leaves it behind and the next run
// passes it back in as resume.
func (m *Migrate) runIdempotent(ctx context.Context, index changes.PhaseIndex, dir changes.Direction, isRevert bool, resume *state.Audit) error {
	shims := shimSchemas(index)

	audit := resume
	if audit == nil {
		var err error
		audit, err = m.state.StartPhase(ctx, m.pgConn, index, isRevert)
		if err != nil {
			return err
		}
	}

	stmts, err := dir.Statements(ctx, m.pgConn, shims)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := m.pgConn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = m.state.EndPhase(ctx, m.pgConn, audit)
	return err
}

// completeUnfinished finishes the phase a crashed migrator left open. Only
// idempotent directions can leave an open row behind; their DDL is safe to
// re-run, so the recovery is to execute it again against the same audit row.
func (m *Migrate) completeUnfinished(ctx context.Context, audit *state.Audit) (*revisions.PhaseEntry, error) {
	entry, err := m.findEntry(audit.Index)
	if err != nil {
		return nil, err
	}

	dir := entry.Phase.Up
	if audit.IsRevert {
		dir = entry.Phase.Down
	}
	if dir.Discipline() != changes.DisciplineIdempotent {
		return nil, fmt.Errorf("unfinished transactional phase %s in the audit log", audit.Index)
	}

	m.logger.Warnf("resuming unfinished phase %s", audit.Index)
	if err := m.runIdempotent(ctx, audit.Index, dir, audit.IsRevert, audit); err != nil {
		return nil, PhaseFailureError{Index: audit.Index, IsRevert: audit.IsRevert, Err: err}
	}
	return entry, nil
}

// findEntry locates the plan entry an audit row refers to. A matching
// position with different hashes means the revision files changed under an
// applied phase.
func (m *Migrate) findEntry(index changes.PhaseIndex) (*revisions.PhaseEntry, error) {
	for _, entry := range m.repo.Phases(revisions.PhaseSlice{}) {
		if entry.Index.Compare(index) != 0 {
			continue
		}
		if !entry.Index.Equal(index) {
			return nil, state.RevisionConflictError{
				Revision:          index.Revision,
				DiskMigrationHash: entry.Index.MigrationHash,
				DiskSchemaHash:    entry.Index.SchemaHash,
				DBMigrationHash:   index.MigrationHash,
				DBSchemaHash:      index.SchemaHash,
			}
		}
		entry := entry
		return &entry, nil
	}
	return nil, UnknownPhaseError{Index: index}
}
