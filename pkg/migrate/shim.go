// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

// shimSchemas resolves the shim schema names a phase at the given position may
// target.
func shimSchemas(index changes.PhaseIndex) changes.ShimSchemas {
	return changes.ShimSchemas{
		Current:  state.ShimSchemaName(index.Revision),
		Previous: state.ShimSchemaName(index.Revision - 1),
	}
}

// leavesShimView reports whether the revision parks a rename view in its shim
// schema. Such a shim outlives the revision: the paired finish_rename in the
// next revision retires the view, and the schema is dropped with it.
func leavesShimView(rev *revisions.Revision) bool {
	return revisionContains(rev, func(c changes.Change) bool {
		_, ok := c.(*changes.BeginRename)
		return ok
	})
}

// dropsPreviousShim reports whether the revision retires the previous
// revision's shim view, which makes that shim schema empty and droppable.
func dropsPreviousShim(rev *revisions.Revision) bool {
	return revisionContains(rev, func(c changes.Change) bool {
		_, ok := c.(*changes.FinishRename)
		return ok
	})
}

func revisionContains(rev *revisions.Revision, match func(changes.Change) bool) bool {
	for _, c := range rev.Migration.PreDeploy {
		if match(c) {
			return true
		}
	}
	for _, c := range rev.Migration.PostDeploy {
		if match(c) {
			return true
		}
	}
	return false
}
