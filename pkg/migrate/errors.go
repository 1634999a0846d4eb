// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"errors"
	"fmt"

	"github.com/pgrev/pgrev/pkg/changes"
)

// ErrNothingToRevert is returned by Down when the audit log is empty.
var ErrNothingToRevert = errors.New("no finished phases to revert")

// PhaseFailureError wraps the database error a phase failed with, together
// with the phase's position in the plan.
type PhaseFailureError struct {
	Index    changes.PhaseIndex
	IsRevert bool
	Err      error
}

func (e PhaseFailureError) Error() string {
	verb := "apply"
	if e.IsRevert {
		verb = "revert"
	}
	return fmt.Sprintf("unable to %s %s: %v", verb, e.Index, e.Err)
}

func (e PhaseFailureError) Unwrap() error {
	return e.Err
}

// UnfinishedPhaseError is returned when an operation needs a quiescent audit
// log but the latest attempt never finished. Running an upgrade completes the
// attempt.
type UnfinishedPhaseError struct {
	Index changes.PhaseIndex
}

func (e UnfinishedPhaseError) Error() string {
	return fmt.Sprintf("phase %s is unfinished; run an upgrade to complete it first", e.Index)
}

// UnknownPhaseError is returned when the audit log references a phase the
// on-disk revisions no longer contain.
type UnknownPhaseError struct {
	Index changes.PhaseIndex
}

func (e UnknownPhaseError) Error() string {
	return fmt.Sprintf("audit log references %s, which no on-disk revision defines", e.Index)
}
