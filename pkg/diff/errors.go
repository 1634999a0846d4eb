// SPDX-License-Identifier: Apache-2.0

package diff

import "fmt"

// UnsupportedDiffError is returned when a catalog difference has no
// representation in the change model, e.g. a primary key change or removing
// an enum label.
type UnsupportedDiffError struct {
	Key    string
	Reason string
}

func (e UnsupportedDiffError) Error() string {
	return fmt.Sprintf("cannot express change to %s: %s", e.Key, e.Reason)
}
