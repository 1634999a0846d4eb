// SPDX-License-Identifier: Apache-2.0

package changes_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgrev/pgrev/pkg/changes"
)

func TestPhaseIndexOrdering(t *testing.T) {
	t.Parallel()

	// listed here out of order on purpose
	indices := []changes.PhaseIndex{
		{Revision: 2, PreDeploy: true, Change: 0, Phase: 0},
		{Revision: 1, PreDeploy: false, Change: 0, Phase: 0},
		{Revision: 1, PreDeploy: true, Change: 1, Phase: 0},
		{Revision: 1, PreDeploy: true, Change: 0, Phase: 1},
		{Revision: 1, PreDeploy: true, Change: 0, Phase: 0},
		{Revision: 1, PreDeploy: false, Change: 2, Phase: 1},
	}

	sort.Slice(indices, func(a, b int) bool {
		return indices[a].Compare(indices[b]) < 0
	})

	want := []changes.PhaseIndex{
		{Revision: 1, PreDeploy: true, Change: 0, Phase: 0},
		{Revision: 1, PreDeploy: true, Change: 0, Phase: 1},
		{Revision: 1, PreDeploy: true, Change: 1, Phase: 0},
		{Revision: 1, PreDeploy: false, Change: 0, Phase: 0},
		{Revision: 1, PreDeploy: false, Change: 2, Phase: 1},
		{Revision: 2, PreDeploy: true, Change: 0, Phase: 0},
	}
	assert.Equal(t, want, indices)
}

func TestPhaseIndexEqualChecksHashes(t *testing.T) {
	t.Parallel()

	a := changes.PhaseIndex{Revision: 1, MigrationHash: []byte{1}, SchemaHash: []byte{2}, PreDeploy: true}
	b := changes.PhaseIndex{Revision: 1, MigrationHash: []byte{1}, SchemaHash: []byte{2}, PreDeploy: true}
	c := changes.PhaseIndex{Revision: 1, MigrationHash: []byte{9}, SchemaHash: []byte{2}, PreDeploy: true}

	require.Zero(t, a.Compare(c), "hashes must not affect ordering")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestPhaseIndexString(t *testing.T) {
	t.Parallel()

	i := changes.PhaseIndex{Revision: 3, PreDeploy: true, Change: 1, Phase: 0}
	assert.Equal(t, "revision 3 pre-deploy change 1 phase 0", i.String())
}
