// SPDX-License-Identifier: Apache-2.0

package revisions

import (
	"github.com/pgrev/pgrev/pkg/changes"
)

// PhaseEntry is one emission of the global phase plan.
type PhaseEntry struct {
	Index    changes.PhaseIndex
	Revision *Revision
	Change   changes.Change
	Phase    changes.Phase
}

// PhaseSlice bounds a phase enumeration. A nil Start (or End) leaves that
// side unbounded.
type PhaseSlice struct {
	Start          *changes.PhaseIndex
	StartInclusive bool
	End            *changes.PhaseIndex
	EndInclusive   bool
}

func (s PhaseSlice) contains(i changes.PhaseIndex) bool {
	if s.Start != nil {
		c := i.Compare(*s.Start)
		if c < 0 || (c == 0 && !s.StartInclusive) {
			return false
		}
	}
	if s.End != nil {
		c := i.Compare(*s.End)
		if c > 0 || (c == 0 && !s.EndInclusive) {
			return false
		}
	}
	return true
}

// Phases enumerates the plan in its total order: revisions ascending, each
// revision's pre-deploy changes before its post-deploy ones, each change's
// phases in declaration order. The slice filters by PhaseIndex comparison.
func (r *Repo) Phases(slice PhaseSlice) []PhaseEntry {
	var out []PhaseEntry
	for _, rev := range r.Revisions {
		for _, stage := range rev.stages() {
			for ci, change := range stage.changes {
				for pi, phase := range change.Phases() {
					index := rev.Index(stage.preDeploy, ci, pi)
					if !slice.contains(index) {
						continue
					}
					out = append(out, PhaseEntry{
						Index:    index,
						Revision: rev,
						Change:   change,
						Phase:    phase,
					})
				}
			}
		}
	}
	return out
}
