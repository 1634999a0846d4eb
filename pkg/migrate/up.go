// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"bytes"
	"context"
	"sort"

	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

// Up applies every phase that has not run yet, resuming from the audit log:
// after a finished forward phase it continues strictly after it, after a
// finished revert it re-runs that phase forward, and an unfinished phase left
// by a crash is completed first.
func (m *Migrate) Up(ctx context.Context) error {
	if err := m.ensureSetUp(ctx); err != nil {
		return err
	}
	if err := m.checkConsistency(ctx); err != nil {
		return err
	}

	slice := revisions.PhaseSlice{}
	last, err := m.state.LatestAudit(ctx)
	if err != nil {
		return err
	}
	if last != nil {
		if !last.Finished() {
			entry, err := m.completeUnfinished(ctx, last)
			if err != nil {
				return err
			}
			// the loop below starts after the completed phase, so its
			// revision boundary must be handled here
			if !last.IsRevert {
				if err := m.closeOutRevision(ctx, *entry); err != nil {
					return err
				}
			}
		}
		start := last.Index
		slice.Start = &start
		slice.StartInclusive = last.IsRevert
	}

	for _, entry := range m.repo.Phases(slice) {
		if first, ok := entry.Revision.FirstIndex(); ok && entry.Index.Equal(first) {
			m.logger.Infof("starting revision %d: %s", entry.Revision.Number, entry.Revision.Migration.Message)
			if err := m.state.CreateShimSchema(ctx, entry.Revision.Number); err != nil {
				return err
			}
			if _, err := m.state.UpsertRevision(ctx, state.Revision{
				Number:        entry.Revision.Number,
				MigrationHash: entry.Revision.MigrationHash,
				SchemaHash:    entry.Revision.SchemaHash,
			}); err != nil {
				return err
			}
		}

		m.logger.Infof("applying %s", entry.Index)
		if err := m.runPhase(ctx, entry, false); err != nil {
			return err
		}

		if err := m.closeOutRevision(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// closeOutRevision drops the shim schemas a revision no longer needs once its
// final phase has been applied.
func (m *Migrate) closeOutRevision(ctx context.Context, entry revisions.PhaseEntry) error {
	lastIdx, ok := entry.Revision.LastIndex()
	if !ok || !entry.Index.Equal(lastIdx) {
		return nil
	}

	// a begin_rename parks its view in this shim; the schema stays until the
	// paired finish_rename empties it
	if !leavesShimView(entry.Revision) {
		if err := m.state.DropShimSchema(ctx, entry.Revision.Number); err != nil {
			return err
		}
	}
	if dropsPreviousShim(entry.Revision) {
		return m.state.DropShimSchema(ctx, entry.Revision.Number-1)
	}
	return nil
}

// checkConsistency verifies that every revision the database knows matches
// its on-disk counterpart by hash pair. Disk revisions beyond the last
// recorded one are fine; they have simply not been applied yet.
func (m *Migrate) checkConsistency(ctx context.Context) error {
	dbRevs, err := m.state.Revisions(ctx)
	if err != nil {
		return err
	}

	crash := true
	if m.repo.Config != nil && m.repo.Config.CrashOnIncompatibleVersion != nil {
		crash = *m.repo.Config.CrashOnIncompatibleVersion
	}

	numbers := make([]int, 0, len(dbRevs))
	for n := range dbRevs {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		dbRev := dbRevs[n]
		rev := m.repo.Revision(n)

		conflict := state.RevisionConflictError{
			Revision:        n,
			DBMigrationHash: dbRev.MigrationHash,
			DBSchemaHash:    dbRev.SchemaHash,
		}
		if rev != nil {
			conflict.DiskMigrationHash = rev.MigrationHash
			conflict.DiskSchemaHash = rev.SchemaHash
		}

		if rev != nil &&
			bytes.Equal(rev.MigrationHash, dbRev.MigrationHash) &&
			bytes.Equal(rev.SchemaHash, dbRev.SchemaHash) {
			continue
		}
		if crash {
			return conflict
		}
		m.logger.Warnf("%v", conflict)
	}
	return nil
}
