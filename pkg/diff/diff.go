// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"fmt"

	"github.com/pgrev/pgrev/pkg/changes"
)

// Diff compares two catalog snapshots and returns the change lists of the
// migration that turns from into to. Additive work lands in pre, sorted in
// forward dependency order; destructive work lands in post, sorted in reverse
// dependency order, so pre can run before the new application deploys and
// post after the old one retires.
func Diff(from, to *Catalog) (pre, post changes.Changes, err error) {
	// keys of old objects that were renamed rather than dropped
	nodrop := make(map[string]bool)

	for _, obj := range depSorted(to) {
		old, ok := from.Objects[obj.Key()]
		if ok {
			p, q, err := alterChanges(old, obj)
			if err != nil {
				return nil, nil, err
			}
			pre = emit(pre, p...)
			post = emit(post, q...)
			continue
		}

		if r, isRenameable := obj.(Renameable); isRenameable && r.OldKey() != "" {
			old, ok := from.Objects[r.OldKey()]
			if !ok {
				return nil, nil, fmt.Errorf("%s: previous name %q not found", obj.Key(), r.OldKey())
			}
			nodrop[r.OldKey()] = true
			pre = emit(pre, renameChange(old, obj))
			continue
		}

		pre = emit(pre, createChange(obj))
	}

	for _, obj := range reversed(depSorted(from)) {
		if kept, ok := to.Objects[obj.Key()]; ok {
			// same key implies same kind
			if ot, isTable := obj.(*Table); isTable {
				nt := kept.(*Table)
				post = emit(post, &changes.RunDDL{
					Up:   ddlify(ot.alterDropColumnsSQL(nt)),
					Down: ddlify(nt.addColumnsSQL(ot)),
				})
			}
			continue
		}
		if nodrop[obj.Key()] {
			continue
		}
		post = emit(post, dropChange(obj))
	}

	return pre, post, nil
}

// emit appends changes to a list, eliding run_ddl changes that carry no DDL
// in either direction.
func emit(list changes.Changes, cs ...changes.Change) changes.Changes {
	for _, c := range cs {
		if ddl, ok := c.(*changes.RunDDL); ok && ddl.Up == "" && ddl.Down == "" {
			continue
		}
		list = append(list, c)
	}
	return list
}

// createChange builds the change that creates obj, with the matching drop as
// its down direction. Indexes and constraints use their typed variants so
// execution keeps the concurrent build and the two-phase validation.
func createChange(obj Object) changes.Change {
	switch o := obj.(type) {
	case *Index:
		return &changes.CreateIndex{Index: o.change()}
	case *Constraint:
		return &changes.AddConstraint{Constraint: o.change()}
	default:
		return &changes.RunDDL{
			Up:   ddlify(createSQL(obj)),
			Down: ddlify(dropSQL(obj)),
		}
	}
}

// dropChange is createChange with the directions swapped.
func dropChange(obj Object) changes.Change {
	switch o := obj.(type) {
	case *Index:
		return &changes.DropIndex{Index: o.change()}
	case *Constraint:
		return &changes.DropConstraint{Constraint: o.change()}
	default:
		return &changes.RunDDL{
			Up:   ddlify(dropSQL(obj)),
			Down: ddlify(createSQL(obj)),
		}
	}
}

func renameChange(old, renamed Object) changes.Change {
	switch o := old.(type) {
	case *Table:
		return &changes.RunDDL{
			Up:   ddlify(o.renameSQL(renamed.(*Table).Name)),
			Down: ddlify(renamed.(*Table).renameSQL(o.Name)),
		}
	case *View:
		return &changes.RunDDL{
			Up:   ddlify(o.renameSQL(renamed.(*View).Name)),
			Down: ddlify(renamed.(*View).renameSQL(o.Name)),
		}
	default:
		panic(fmt.Sprintf("renameChange: %T is not renameable", old))
	}
}

// alterChanges builds the changes for an object present on both sides. The
// first return value goes to the pre-deploy list, the second to post-deploy.
// Table column drops are the only post-deploy alterations; everything else is
// additive or in-place.
func alterChanges(old, newObj Object) (pre, post []changes.Change, err error) {
	switch o := old.(type) {
	case *Schema:
		return nil, nil, nil

	case *EnumType:
		stmts, err := o.alterSQL(newObj.(*EnumType))
		if err != nil {
			return nil, nil, err
		}
		// added enum labels cannot be removed again
		return []changes.Change{&changes.RunDDL{Up: ddlify(stmts)}}, nil, nil

	case *Domain:
		n := newObj.(*Domain)
		up, err := o.alterSQL(n)
		if err != nil {
			return nil, nil, err
		}
		down, err := n.alterSQL(o)
		if err != nil {
			return nil, nil, err
		}
		return []changes.Change{&changes.RunDDL{Up: ddlify(up), Down: ddlify(down)}}, nil, nil

	case *Sequence:
		n := newObj.(*Sequence)
		up, err := o.alterSQL(n)
		if err != nil {
			return nil, nil, err
		}
		down, err := n.alterSQL(o)
		if err != nil {
			return nil, nil, err
		}
		return []changes.Change{&changes.RunDDL{Up: ddlify(up), Down: ddlify(down)}}, nil, nil

	case *Table:
		n := newObj.(*Table)
		if err := o.checkAlterable(n); err != nil {
			return nil, nil, err
		}
		up := append(o.addColumnsSQL(n), o.alterColumnsSQL(n)...)
		down := append(n.alterDropColumnsSQL(o), n.alterColumnsSQL(o)...)
		return []changes.Change{&changes.RunDDL{Up: ddlify(up), Down: ddlify(down)}}, nil, nil

	case *View:
		n := newObj.(*View)
		return []changes.Change{&changes.RunDDL{
			Up:   ddlify(o.alterSQL(n)),
			Down: ddlify(n.alterSQL(o)),
		}}, nil, nil

	case *Function:
		n := newObj.(*Function)
		return []changes.Change{&changes.RunDDL{
			Up:   ddlify(o.alterSQL(n)),
			Down: ddlify(n.alterSQL(o)),
		}}, nil, nil

	case *Index:
		n := newObj.(*Index)
		if *o == *n {
			return nil, nil, nil
		}
		// same name, new definition: rebuild after the old application is gone
		return nil, []changes.Change{
			&changes.DropIndex{Index: o.change()},
			&changes.CreateIndex{Index: n.change()},
		}, nil

	case *Constraint:
		n := newObj.(*Constraint)
		if *o == *n {
			return nil, nil, nil
		}
		return nil, []changes.Change{
			&changes.DropConstraint{Constraint: o.change()},
			&changes.AddConstraint{Constraint: n.change()},
		}, nil

	default:
		return nil, nil, UnsupportedDiffError{Key: old.Key(), Reason: fmt.Sprintf("unknown object kind %T", old)}
	}
}

func createSQL(obj Object) []string {
	switch o := obj.(type) {
	case *Schema:
		return o.createSQL()
	case *EnumType:
		return o.createSQL()
	case *Domain:
		return o.createSQL()
	case *Sequence:
		return o.createSQL()
	case *Table:
		return o.createSQL()
	case *View:
		return o.createSQL()
	case *Function:
		return o.createSQL()
	default:
		panic(fmt.Sprintf("createSQL: unknown object kind %T", obj))
	}
}

func dropSQL(obj Object) []string {
	switch o := obj.(type) {
	case *Schema:
		return o.dropSQL()
	case *EnumType:
		return o.dropSQL()
	case *Domain:
		return o.dropSQL()
	case *Sequence:
		return o.dropSQL()
	case *Table:
		return o.dropSQL()
	case *View:
		return o.dropSQL()
	case *Function:
		return o.dropSQL()
	default:
		panic(fmt.Sprintf("dropSQL: unknown object kind %T", obj))
	}
}

func (i *Index) change() changes.Index {
	return changes.Index{
		Unique: i.Unique,
		Name:   i.Name,
		Table:  i.Table,
		Expr:   i.Expr,
		Using:  i.Using,
		Where:  i.Where,
	}
}

func (c *Constraint) change() changes.Constraint {
	return changes.Constraint{
		Table:      c.Table,
		Domain:     c.Domain,
		Name:       c.Name,
		Check:      c.Check,
		ForeignKey: c.ForeignKey,
		References: c.References,
	}
}
