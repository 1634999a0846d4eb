// SPDX-License-Identifier: Apache-2.0

package changes

import "fmt"

type InvalidChangeError struct {
	Reason string
}

func (e InvalidChangeError) Error() string {
	return e.Reason
}

type FieldRequiredError struct {
	Name string
}

func (e FieldRequiredError) Error() string {
	return fmt.Sprintf("field %q is required", e.Name)
}

// SchemaMismatchError is returned when a rename refers to a column that does
// not exist on the live table.
type SchemaMismatchError struct {
	Table  string
	Column string
}

func (e SchemaMismatchError) Error() string {
	return fmt.Sprintf("column %q does not exist on table %q", e.Column, e.Table)
}
