// SPDX-License-Identifier: Apache-2.0

// Package revisions loads the on-disk revision directory and turns it into
// the global, totally ordered phase plan.
package revisions

import (
	"crypto/sha256"

	"github.com/pgrev/pgrev/pkg/changes"
)

// Migration is the parsed body of a revision's migration file.
type Migration struct {
	Message    string          `json:"message"`
	PreDeploy  changes.Changes `json:"pre_deploy,omitempty"`
	PostDeploy changes.Changes `json:"post_deploy,omitempty"`
}

// Revision is one numbered, hash-identified snapshot: a migration body plus
// the canonical SQL schema the database is in after applying it. Hashes are
// SHA-256 over the raw file bytes and are the revision's identity everywhere
// (audit rows, revisions table, connections).
type Revision struct {
	Number        int
	MigrationText []byte
	SchemaText    []byte
	MigrationHash []byte
	SchemaHash    []byte
	Migration     *Migration
}

func newRevision(number int, migrationText, schemaText []byte, migration *Migration) *Revision {
	migHash := sha256.Sum256(migrationText)
	schemaHash := sha256.Sum256(schemaText)
	return &Revision{
		Number:        number,
		MigrationText: migrationText,
		SchemaText:    schemaText,
		MigrationHash: migHash[:],
		SchemaHash:    schemaHash[:],
		Migration:     migration,
	}
}

// Index builds the PhaseIndex of one of this revision's phases.
func (r *Revision) Index(preDeploy bool, change, phase int) changes.PhaseIndex {
	return changes.PhaseIndex{
		Revision:      r.Number,
		MigrationHash: r.MigrationHash,
		SchemaHash:    r.SchemaHash,
		PreDeploy:     preDeploy,
		Change:        change,
		Phase:         phase,
	}
}

// stages returns the two change lists in execution order.
func (r *Revision) stages() []struct {
	preDeploy bool
	changes   changes.Changes
} {
	return []struct {
		preDeploy bool
		changes   changes.Changes
	}{
		{preDeploy: true, changes: r.Migration.PreDeploy},
		{preDeploy: false, changes: r.Migration.PostDeploy},
	}
}

// FirstIndex returns the index of the revision's first phase. The second
// return is false for a revision with no phases at all.
func (r *Revision) FirstIndex() (changes.PhaseIndex, bool) {
	for _, stage := range r.stages() {
		for ci, c := range stage.changes {
			if len(c.Phases()) > 0 {
				return r.Index(stage.preDeploy, ci, 0), true
			}
		}
	}
	return changes.PhaseIndex{}, false
}

// LastIndex returns the index of the revision's final phase.
func (r *Revision) LastIndex() (changes.PhaseIndex, bool) {
	found := false
	var last changes.PhaseIndex
	for _, stage := range r.stages() {
		for ci, c := range stage.changes {
			if n := len(c.Phases()); n > 0 {
				last = r.Index(stage.preDeploy, ci, n-1)
				found = true
			}
		}
	}
	return last, found
}
