// SPDX-License-Identifier: Apache-2.0

package changes

import (
	"bytes"
	"fmt"
)

// PhaseIndex is the deterministic identity of a phase within the global plan.
// The hashes pin the index to the exact revision contents; they take no part
// in the ordering.
type PhaseIndex struct {
	Revision      int    `json:"revision"`
	MigrationHash []byte `json:"migration_hash"`
	SchemaHash    []byte `json:"schema_hash"`
	PreDeploy     bool   `json:"pre_deploy"`
	Change        int    `json:"change"`
	Phase         int    `json:"phase"`
}

// Compare orders indices by (revision asc, pre-deploy before post-deploy,
// change asc, phase asc). It returns -1, 0 or 1.
func (i PhaseIndex) Compare(other PhaseIndex) int {
	if c := cmpInt(i.Revision, other.Revision); c != 0 {
		return c
	}
	// pre-deploy sorts before post-deploy
	if c := cmpInt(deployRank(i.PreDeploy), deployRank(other.PreDeploy)); c != 0 {
		return c
	}
	if c := cmpInt(i.Change, other.Change); c != 0 {
		return c
	}
	return cmpInt(i.Phase, other.Phase)
}

// Equal reports full identity, hashes included.
func (i PhaseIndex) Equal(other PhaseIndex) bool {
	return i.Compare(other) == 0 &&
		bytes.Equal(i.MigrationHash, other.MigrationHash) &&
		bytes.Equal(i.SchemaHash, other.SchemaHash)
}

func (i PhaseIndex) String() string {
	stage := "post"
	if i.PreDeploy {
		stage = "pre"
	}
	return fmt.Sprintf("revision %d %s-deploy change %d phase %d", i.Revision, stage, i.Change, i.Phase)
}

func deployRank(preDeploy bool) int {
	if preDeploy {
		return 0
	}
	return 1
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
