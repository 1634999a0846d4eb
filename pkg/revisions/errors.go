// SPDX-License-Identifier: Apache-2.0

package revisions

import "fmt"

// MalformedRevisionError wraps a parse or schema-validation failure of a
// revision file.
type MalformedRevisionError struct {
	Filename string
	Cause    error
}

func (e MalformedRevisionError) Error() string {
	return fmt.Sprintf("malformed revision file %q: %v", e.Filename, e.Cause)
}

func (e MalformedRevisionError) Unwrap() error {
	return e.Cause
}

// MissingRevisionError is returned when the on-disk revisions do not form a
// contiguous range starting at 1.
type MissingRevisionError struct {
	GapAt int
}

func (e MissingRevisionError) Error() string {
	return fmt.Sprintf("revisions are not contiguous: revision %d is missing", e.GapAt)
}
