// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"fmt"
	"math"
	"strings"

	"github.com/lib/pq"
)

// DDL builders for catalog objects. Every builder returns statements without
// trailing semicolons; ddlify joins them into the single string a run_ddl
// change carries.

func ddlify(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n") + ";"
}

func qident(schema, name string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (s *Schema) createSQL() []string {
	return []string{"CREATE SCHEMA " + pq.QuoteIdentifier(s.Name)}
}

func (s *Schema) dropSQL() []string {
	return []string{"DROP SCHEMA " + pq.QuoteIdentifier(s.Name)}
}

func (t *EnumType) createSQL() []string {
	labels := make([]string, len(t.Labels))
	for i, l := range t.Labels {
		labels[i] = quoteLiteral(l)
	}
	return []string{fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)",
		qident(t.Schema, t.Name), strings.Join(labels, ", "))}
}

func (t *EnumType) dropSQL() []string {
	return []string{"DROP TYPE " + qident(t.Schema, t.Name)}
}

// alterSQL emits ADD VALUE for labels appended to the enum. Removing or
// reordering labels has no DDL form short of rebuilding the type.
func (t *EnumType) alterSQL(to *EnumType) ([]string, error) {
	if len(to.Labels) < len(t.Labels) {
		return nil, UnsupportedDiffError{Key: t.Key(), Reason: "enum labels cannot be removed"}
	}
	for i, l := range t.Labels {
		if to.Labels[i] != l {
			return nil, UnsupportedDiffError{Key: t.Key(), Reason: "enum labels cannot be reordered"}
		}
	}
	var stmts []string
	for _, l := range to.Labels[len(t.Labels):] {
		stmts = append(stmts, fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s",
			qident(t.Schema, t.Name), quoteLiteral(l)))
	}
	return stmts, nil
}

func (d *Domain) createSQL() []string {
	stmt := fmt.Sprintf("CREATE DOMAIN %s AS %s", qident(d.Schema, d.Name), d.BaseType)
	if d.Default != "" {
		stmt += " DEFAULT " + d.Default
	}
	if d.NotNull {
		stmt += " NOT NULL"
	}
	return []string{stmt}
}

func (d *Domain) dropSQL() []string {
	return []string{"DROP DOMAIN " + qident(d.Schema, d.Name)}
}

func (d *Domain) alterSQL(to *Domain) ([]string, error) {
	if d.BaseType != to.BaseType {
		return nil, UnsupportedDiffError{Key: d.Key(), Reason: "domain base type cannot change"}
	}
	target := "ALTER DOMAIN " + qident(d.Schema, d.Name)
	var stmts []string
	if d.Default != to.Default {
		if to.Default == "" {
			stmts = append(stmts, target+" DROP DEFAULT")
		} else {
			stmts = append(stmts, target+" SET DEFAULT "+to.Default)
		}
	}
	if d.NotNull != to.NotNull {
		if to.NotNull {
			stmts = append(stmts, target+" SET NOT NULL")
		} else {
			stmts = append(stmts, target+" DROP NOT NULL")
		}
	}
	return stmts, nil
}

func (s *Sequence) createSQL() []string {
	stmt := fmt.Sprintf("CREATE SEQUENCE %s INCREMENT BY %d", qident(s.Schema, s.Name), s.Increment)
	if !implicitSequenceBound(s.MinValue) {
		stmt += fmt.Sprintf(" MINVALUE %d", s.MinValue)
	}
	if !implicitSequenceBound(s.MaxValue) {
		stmt += fmt.Sprintf(" MAXVALUE %d", s.MaxValue)
	}
	stmt += fmt.Sprintf(" START WITH %d CACHE %d", s.Start, s.Cache)
	if s.Cycle {
		stmt += " CYCLE"
	}
	return []string{stmt}
}

func (s *Sequence) dropSQL() []string {
	return []string{"DROP SEQUENCE " + qident(s.Schema, s.Name)}
}

// implicitSequenceBound reports whether v is one of the bounds PostgreSQL
// fills in for an unbounded bigint sequence. Diffs landing on these values
// are noise from the catalog defaults, not a declared change.
func implicitSequenceBound(v int64) bool {
	return v == 1 || v == -1 || v == math.MinInt64 || v == math.MaxInt64
}

func (s *Sequence) alterSQL(to *Sequence) ([]string, error) {
	target := "ALTER SEQUENCE " + qident(s.Schema, s.Name)
	var opts []string
	if s.Increment != to.Increment {
		opts = append(opts, fmt.Sprintf("INCREMENT BY %d", to.Increment))
	}
	if s.MinValue != to.MinValue && !implicitSequenceBound(to.MinValue) {
		opts = append(opts, fmt.Sprintf("MINVALUE %d", to.MinValue))
	}
	if s.MaxValue != to.MaxValue && !implicitSequenceBound(to.MaxValue) {
		opts = append(opts, fmt.Sprintf("MAXVALUE %d", to.MaxValue))
	}
	if s.Start != to.Start {
		opts = append(opts, fmt.Sprintf("START WITH %d", to.Start))
	}
	if s.Cache != to.Cache {
		opts = append(opts, fmt.Sprintf("CACHE %d", to.Cache))
	}
	if s.Cycle != to.Cycle {
		if to.Cycle {
			opts = append(opts, "CYCLE")
		} else {
			opts = append(opts, "NO CYCLE")
		}
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return []string{target + " " + strings.Join(opts, " ")}, nil
}

// columnDef renders the column as it appears inside CREATE TABLE and
// ADD COLUMN.
func columnDef(c Column) string {
	def := pq.QuoteIdentifier(c.Name) + " " + c.Type
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	if c.NotNull {
		def += " NOT NULL"
	}
	return def
}

func (t *Table) createSQL() []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, "    "+columnDef(c))
	}
	if len(t.PrimaryKey) > 0 {
		cols := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			cols[i] = pq.QuoteIdentifier(c)
		}
		defs = append(defs, "    PRIMARY KEY ("+strings.Join(cols, ", ")+")")
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n%s\n)",
		qident(t.Schema, t.Name), strings.Join(defs, ",\n"))}
	for _, c := range t.Columns {
		if c.Comment != "" {
			stmts = append(stmts, commentOnColumn(t, c.Name, c.Comment))
		}
	}
	return stmts
}

func (t *Table) dropSQL() []string {
	return []string{"DROP TABLE " + qident(t.Schema, t.Name)}
}

func (t *Table) renameSQL(to string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		qident(t.Schema, t.Name), pq.QuoteIdentifier(to))}
}

func commentOnColumn(t *Table, col, comment string) string {
	text := "NULL"
	if comment != "" {
		text = quoteLiteral(comment)
	}
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
		qident(t.Schema, t.Name), pq.QuoteIdentifier(col), text)
}

// addColumnsSQL emits ADD COLUMN for columns of to that t does not have. It
// is both the additive half of a forward table diff and the down direction of
// a column drop.
func (t *Table) addColumnsSQL(to *Table) []string {
	target := "ALTER TABLE " + qident(t.Schema, t.Name)
	var stmts []string
	for _, nc := range to.Columns {
		if t.Column(nc.Name) != nil {
			continue
		}
		stmts = append(stmts, target+" ADD COLUMN "+columnDef(nc))
		if nc.Comment != "" {
			stmts = append(stmts, commentOnColumn(t, nc.Name, nc.Comment))
		}
	}
	return stmts
}

// alterColumnsSQL emits in-place alterations for columns present on both
// sides: type, default, nullability and comment.
func (t *Table) alterColumnsSQL(to *Table) []string {
	target := "ALTER TABLE " + qident(t.Schema, t.Name)
	var stmts []string
	for _, nc := range to.Columns {
		oc := t.Column(nc.Name)
		if oc == nil {
			continue
		}
		col := target + " ALTER COLUMN " + pq.QuoteIdentifier(nc.Name)
		if oc.Type != nc.Type {
			stmts = append(stmts, col+" TYPE "+nc.Type)
		}
		if oc.Default != nc.Default {
			if nc.Default == "" {
				stmts = append(stmts, col+" DROP DEFAULT")
			} else {
				stmts = append(stmts, col+" SET DEFAULT "+nc.Default)
			}
		}
		if oc.NotNull != nc.NotNull {
			if nc.NotNull {
				stmts = append(stmts, col+" SET NOT NULL")
			} else {
				stmts = append(stmts, col+" DROP NOT NULL")
			}
		}
		if oc.Comment != nc.Comment {
			stmts = append(stmts, commentOnColumn(t, nc.Name, nc.Comment))
		}
	}
	return stmts
}

// checkAlterable rejects table differences the change model cannot express.
func (t *Table) checkAlterable(to *Table) error {
	if !equalStrings(t.PrimaryKey, to.PrimaryKey) {
		return UnsupportedDiffError{Key: t.Key(), Reason: "primary key cannot change"}
	}
	return nil
}

// alterDropColumnsSQL emits drops for columns of t that to no longer has.
func (t *Table) alterDropColumnsSQL(to *Table) []string {
	target := "ALTER TABLE " + qident(t.Schema, t.Name)
	var stmts []string
	for _, oc := range t.Columns {
		if to.Column(oc.Name) == nil {
			stmts = append(stmts, target+" DROP COLUMN "+pq.QuoteIdentifier(oc.Name))
		}
	}
	return stmts
}

func (v *View) createSQL() []string {
	return []string{fmt.Sprintf("CREATE VIEW %s AS %s", qident(v.Schema, v.Name), v.Definition)}
}

func (v *View) dropSQL() []string {
	return []string{"DROP VIEW " + qident(v.Schema, v.Name)}
}

func (v *View) renameSQL(to string) []string {
	return []string{fmt.Sprintf("ALTER VIEW %s RENAME TO %s",
		qident(v.Schema, v.Name), pq.QuoteIdentifier(to))}
}

func (v *View) alterSQL(to *View) []string {
	if v.Definition == to.Definition {
		return nil
	}
	return []string{fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s",
		qident(v.Schema, v.Name), to.Definition)}
}

func (f *Function) createSQL() []string {
	return []string{f.Definition}
}

func (f *Function) dropSQL() []string {
	return []string{fmt.Sprintf("DROP FUNCTION %s(%s)", qident(f.Schema, f.Name), f.IdentArgs)}
}

func (f *Function) alterSQL(to *Function) []string {
	if f.Definition == to.Definition {
		return nil
	}
	// definitions are full CREATE OR REPLACE statements
	return []string{to.Definition}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
