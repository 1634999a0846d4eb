// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"fmt"

	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/revisions"
)

// Down reverts phases until only revisions 1..target remain applied. Target 0
// reverts everything. The walk is the upgrade plan reversed: each phase's
// down direction runs, bounded above by the latest audit so only applied
// phases are touched.
func (m *Migrate) Down(ctx context.Context, target int) error {
	if target < 0 {
		return fmt.Errorf("invalid target revision %d", target)
	}
	if err := m.ensureSetUp(ctx); err != nil {
		return err
	}
	if err := m.checkConsistency(ctx); err != nil {
		return err
	}

	last, err := m.state.LatestAudit(ctx)
	if err != nil {
		return err
	}
	if last == nil {
		return ErrNothingToRevert
	}
	if !last.Finished() {
		return UnfinishedPhaseError{Index: last.Index}
	}

	// first phase beyond the target revision
	var start *changes.PhaseIndex
	for n := target + 1; n <= len(m.repo.Revisions); n++ {
		if idx, ok := m.repo.Revision(n).FirstIndex(); ok {
			start = &idx
			break
		}
	}
	if start == nil {
		return nil
	}

	// a finished revert means its phase is no longer applied
	end := last.Index
	slice := revisions.PhaseSlice{
		Start:          start,
		StartInclusive: true,
		End:            &end,
		EndInclusive:   !last.IsRevert,
	}

	entries := m.repo.Phases(slice)
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		if lastIdx, ok := entry.Revision.LastIndex(); ok && entry.Index.Equal(lastIdx) {
			m.logger.Infof("reverting revision %d: %s", entry.Revision.Number, entry.Revision.Migration.Message)
			if err := m.state.CreateShimSchema(ctx, entry.Revision.Number); err != nil {
				return err
			}
			// reverting a finish_rename rebuilds the view of the paired
			// begin_rename one revision back, so that shim must exist again
			if dropsPreviousShim(entry.Revision) {
				if err := m.state.CreateShimSchema(ctx, entry.Revision.Number-1); err != nil {
					return err
				}
			}
		}

		m.logger.Infof("reverting %s", entry.Index)
		if err := m.runPhase(ctx, entry, true); err != nil {
			return err
		}

		if first, ok := entry.Revision.FirstIndex(); ok && entry.Index.Equal(first) {
			if err := m.state.DropShimSchema(ctx, entry.Revision.Number); err != nil {
				return err
			}
			if err := m.state.DeleteRevision(ctx, entry.Revision.Number); err != nil {
				return err
			}
		}
	}
	return nil
}
