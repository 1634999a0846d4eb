// SPDX-License-Identifier: Apache-2.0

// Package changes defines the declarative change model: each change variant
// expands into a fixed, ordered list of phases, and each phase carries an up
// and a down direction. The package deliberately knows nothing about
// revisions or migration state; those layers import it, never the reverse.
package changes

import (
	"encoding/json"
	"fmt"
)

type ChangeName string

const (
	ChangeNameRunDDL         ChangeName = "run_ddl"
	ChangeNameCreateIndex    ChangeName = "create_index"
	ChangeNameDropIndex      ChangeName = "drop_index"
	ChangeNameAddConstraint  ChangeName = "add_constraint"
	ChangeNameDropConstraint ChangeName = "drop_constraint"
	ChangeNameBeginRename    ChangeName = "begin_rename"
	ChangeNameFinishRename   ChangeName = "finish_rename"
)

// Change is one declarative modification within a revision.
type Change interface {
	// Phases expands the change into its ordered executable phases.
	Phases() []Phase

	// Validate checks the change's fields for internal consistency.
	Validate() error
}

// Changes is an ordered list of changes. Its serialized form is a list of
// single-key objects, the key naming the variant:
//
//	- run_ddl:      {up: "...", down: "..."}
//	- create_index: {name: "...", table: "...", expr: "..."}
type Changes []Change

// UnmarshalJSON deserializes the one-key-per-element list form.
func (v *Changes) UnmarshalJSON(data []byte) error {
	var tmp []map[string]json.RawMessage
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	if len(tmp) == 0 {
		*v = Changes{}
		return nil
	}

	cs := make([]Change, len(tmp))
	for i, obj := range tmp {
		if len(obj) != 1 {
			return InvalidChangeError{Reason: fmt.Sprintf("change %d must have exactly one key", i)}
		}

		var name ChangeName
		var body json.RawMessage
		for k, v := range obj {
			name = ChangeName(k)
			body = v
		}

		var item Change
		switch name {
		case ChangeNameRunDDL:
			item = &RunDDL{}

		case ChangeNameCreateIndex:
			item = &CreateIndex{}

		case ChangeNameDropIndex:
			item = &DropIndex{}

		case ChangeNameAddConstraint:
			item = &AddConstraint{}

		case ChangeNameDropConstraint:
			item = &DropConstraint{}

		case ChangeNameBeginRename:
			item = &BeginRename{}

		case ChangeNameFinishRename:
			item = &FinishRename{}

		default:
			return InvalidChangeError{Reason: fmt.Sprintf("unknown change type: %q", name)}
		}

		if err := json.Unmarshal(body, item); err != nil {
			return fmt.Errorf("unable to unmarshal %q change: %w", name, err)
		}
		cs[i] = item
	}

	*v = cs
	return nil
}

// MarshalJSON serializes the list back into its one-key-per-element form.
func (v Changes) MarshalJSON() ([]byte, error) {
	out := make([]map[string]Change, len(v))
	for i, c := range v {
		name, err := nameOf(c)
		if err != nil {
			return nil, err
		}
		out[i] = map[string]Change{string(name): c}
	}
	return json.Marshal(out)
}

func nameOf(c Change) (ChangeName, error) {
	switch c.(type) {
	case *RunDDL:
		return ChangeNameRunDDL, nil
	case *CreateIndex:
		return ChangeNameCreateIndex, nil
	case *DropIndex:
		return ChangeNameDropIndex, nil
	case *AddConstraint:
		return ChangeNameAddConstraint, nil
	case *DropConstraint:
		return ChangeNameDropConstraint, nil
	case *BeginRename:
		return ChangeNameBeginRename, nil
	case *FinishRename:
		return ChangeNameFinishRename, nil
	default:
		return "", InvalidChangeError{Reason: fmt.Sprintf("unregistered change type %T", c)}
	}
}

// Validate validates every change in the list.
func (v Changes) Validate() error {
	for i, c := range v {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
	}
	return nil
}
