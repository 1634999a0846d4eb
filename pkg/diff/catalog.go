// SPDX-License-Identifier: Apache-2.0

// Package diff compares two PostgreSQL catalog snapshots and emits the two
// ordered change lists of an expand/contract migration: additive work before
// the new application rolls out, destructive work after the old one retires.
package diff

import (
	"fmt"
	"sort"
)

// Object is one diffable database object. Keys are unique across the whole
// catalog and stable between snapshots, so the same object can be matched on
// both sides.
type Object interface {
	// Key is "<kind> <qualified name>", e.g. "table public.users".
	Key() string

	// DependsOn lists the keys of objects that must exist first.
	DependsOn() []string
}

// Renameable objects may declare the key they were previously known under.
// The differ then suppresses the old object's drop instead of emitting a
// drop/create pair.
type Renameable interface {
	OldKey() string
}

// Catalog is an in-memory snapshot of one database's objects, keyed by
// Object.Key().
type Catalog struct {
	Objects map[string]Object
}

func NewCatalog() *Catalog {
	return &Catalog{Objects: make(map[string]Object)}
}

// Add inserts objects into the catalog, failing on duplicate keys.
func (c *Catalog) Add(objs ...Object) error {
	for _, o := range objs {
		if _, ok := c.Objects[o.Key()]; ok {
			return fmt.Errorf("duplicate catalog object %q", o.Key())
		}
		c.Objects[o.Key()] = o
	}
	return nil
}

// MustAdd is Add for fixtures and tests.
func (c *Catalog) MustAdd(objs ...Object) *Catalog {
	if err := c.Add(objs...); err != nil {
		panic(err)
	}
	return c
}

// sorted returns the catalog's objects ordered by key, for deterministic
// iteration before the dependency sort refines the order.
func (c *Catalog) sorted() []Object {
	keys := make([]string, 0, len(c.Objects))
	for k := range c.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	objs := make([]Object, len(keys))
	for i, k := range keys {
		objs[i] = c.Objects[k]
	}
	return objs
}

// Schema is a plain namespace.
type Schema struct {
	Name string
}

func (s *Schema) Key() string         { return "schema " + s.Name }
func (s *Schema) DependsOn() []string { return nil }

// EnumType is a CREATE TYPE ... AS ENUM type.
type EnumType struct {
	Schema string
	Name   string
	Labels []string
}

func (t *EnumType) Key() string         { return "type " + qualify(t.Schema, t.Name) }
func (t *EnumType) DependsOn() []string { return []string{"schema " + t.Schema} }

// Domain is a domain over a base type. Its constraints live in the
// constraints category, like table constraints.
type Domain struct {
	Schema   string
	Name     string
	BaseType string
	NotNull  bool
	Default  string
}

func (d *Domain) Key() string         { return "domain " + qualify(d.Schema, d.Name) }
func (d *Domain) DependsOn() []string { return []string{"schema " + d.Schema} }

// Sequence is a standalone sequence. Identity/serial-owned sequences are part
// of their table and never appear here.
type Sequence struct {
	Schema    string
	Name      string
	Start     int64
	Increment int64
	MinValue  int64
	MaxValue  int64
	Cache     int64
	Cycle     bool
}

func (s *Sequence) Key() string         { return "sequence " + qualify(s.Schema, s.Name) }
func (s *Sequence) DependsOn() []string { return []string{"schema " + s.Schema} }

// Column is one table column.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	Default string
	Comment string
}

// Table is a table with its columns and primary key. Indexes and
// check/foreign-key constraints are separate objects so they can go through
// their concurrent/two-phase change variants.
type Table struct {
	Schema     string
	Name       string
	Columns    []Column
	PrimaryKey []string

	// PrevName marks a table that used to be known under another name; the
	// differ will not drop the old entry.
	PrevName string

	// Deps carries extra dependencies (column types on domains/enums,
	// sequences used by defaults) discovered by the catalog reader.
	Deps []string
}

func (t *Table) Key() string { return "table " + qualify(t.Schema, t.Name) }

func (t *Table) DependsOn() []string {
	return append([]string{"schema " + t.Schema}, t.Deps...)
}

func (t *Table) OldKey() string {
	if t.PrevName == "" {
		return ""
	}
	return "table " + qualify(t.Schema, t.PrevName)
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// View is a regular view, stored with its full SELECT definition.
type View struct {
	Schema     string
	Name       string
	Definition string
	PrevName   string
	Deps       []string
}

func (v *View) Key() string { return "view " + qualify(v.Schema, v.Name) }

func (v *View) DependsOn() []string {
	return append([]string{"schema " + v.Schema}, v.Deps...)
}

func (v *View) OldKey() string {
	if v.PrevName == "" {
		return ""
	}
	return "view " + qualify(v.Schema, v.PrevName)
}

// Function is stored as its full CREATE OR REPLACE definition plus the
// identity signature used for DROP.
type Function struct {
	Schema     string
	Name       string
	IdentArgs  string // as printed by pg_get_function_identity_arguments
	Definition string
	Deps       []string
}

func (f *Function) Key() string {
	return fmt.Sprintf("function %s(%s)", qualify(f.Schema, f.Name), f.IdentArgs)
}

func (f *Function) DependsOn() []string {
	return append([]string{"schema " + f.Schema}, f.Deps...)
}

// Index is a secondary index, excluding those backing constraints.
type Index struct {
	Schema string
	Table  string
	Name   string
	Unique bool
	Expr   string
	Using  string // empty for btree
	Where  string
}

func (i *Index) Key() string { return "index " + qualify(i.Schema, i.Name) }

func (i *Index) DependsOn() []string {
	return []string{"table " + qualify(i.Schema, i.Table)}
}

// Constraint is a CHECK or FOREIGN KEY constraint on a table or domain.
type Constraint struct {
	Schema string
	Table  string // exactly one of Table, Domain is set
	Domain string
	Name   string

	Check string // parenthesized expression, e.g. "(length(email) > 0)"

	ForeignKey string // local column list
	References string // e.g. "users (id)"
	RefTable   string // referenced table name, for dependency tracking
}

func (c *Constraint) Key() string {
	return fmt.Sprintf("constraint %s.%s", qualify(c.Schema, c.target()), c.Name)
}

func (c *Constraint) target() string {
	if c.Table != "" {
		return c.Table
	}
	return c.Domain
}

func (c *Constraint) DependsOn() []string {
	var deps []string
	if c.Table != "" {
		deps = append(deps, "table "+qualify(c.Schema, c.Table))
	} else {
		deps = append(deps, "domain "+qualify(c.Schema, c.Domain))
	}
	if c.RefTable != "" {
		deps = append(deps, "table "+qualify(c.Schema, c.RefTable))
	}
	return deps
}

func qualify(schema, name string) string {
	return schema + "." + name
}
