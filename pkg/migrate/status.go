// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"sort"

	"github.com/pgrev/pgrev/pkg/state"
)

// Status is a point-in-time summary of the migrator's view of a database.
type Status struct {
	Initialized   bool `json:"initialized"`
	DiskRevisions int  `json:"disk_revisions"`

	// Applied lists the live database revisions in ascending order.
	Applied []state.Revision `json:"applied"`

	LatestAudit *state.Audit `json:"latest_audit"`

	// Connections are the application backends currently registered through
	// the incantation.
	Connections []state.AppConnection `json:"connections"`
}

func (m *Migrate) Status(ctx context.Context) (*Status, error) {
	st := &Status{DiskRevisions: len(m.repo.Revisions)}

	ok, err := m.state.IsSetUp(ctx)
	if err != nil {
		return nil, err
	}
	st.Initialized = ok
	if !ok {
		return st, nil
	}

	revs, err := m.state.Revisions(ctx)
	if err != nil {
		return nil, err
	}
	for _, rev := range revs {
		st.Applied = append(st.Applied, rev)
	}
	sort.Slice(st.Applied, func(i, j int) bool {
		return st.Applied[i].Number < st.Applied[j].Number
	})

	st.LatestAudit, err = m.state.LatestAudit(ctx)
	if err != nil {
		return nil, err
	}

	st.Connections, err = m.state.Connections(ctx)
	if err != nil {
		return nil, err
	}

	return st, nil
}
