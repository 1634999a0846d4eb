// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pgrev/pgrev/pkg/db"
)

// ReadCatalog snapshots the user-visible objects of a database. System
// schemas are always skipped; exclude lists further schemas to ignore, such
// as the migrator's own status schema and shim schemas.
func ReadCatalog(ctx context.Context, q db.Queryer, exclude ...string) (*Catalog, error) {
	r := &reader{q: q, exclude: exclude, catalog: NewCatalog()}

	steps := []func(context.Context) error{
		r.readSchemas,
		r.readEnumTypes,
		r.readDomains,
		r.readSequences,
		r.readTables,
		r.readViews,
		r.readFunctions,
		r.readIndexes,
		r.readConstraints,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return nil, err
		}
	}

	r.resolveTableDeps()
	return r.catalog, nil
}

type reader struct {
	q       db.Queryer
	exclude []string
	catalog *Catalog
}

// schemaFilter is the WHERE fragment shared by every catalog query; $1 is
// always the excluded-schema array.
const schemaFilter = `n.nspname NOT LIKE 'pg\_%' AND n.nspname <> 'information_schema' AND NOT n.nspname = ANY($1)`

func (r *reader) excludeArg() interface{} {
	if r.exclude == nil {
		return pq.Array([]string{})
	}
	return pq.Array(r.exclude)
}

func (r *reader) readSchemas(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx,
		`SELECT n.nspname FROM pg_catalog.pg_namespace n WHERE `+schemaFilter, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading schemas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &Schema{}
		if err := rows.Scan(&s.Name); err != nil {
			return err
		}
		if err := r.catalog.Add(s); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) readEnumTypes(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, t.typname,
		       array_agg(e.enumlabel ORDER BY e.enumsortorder)
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_enum e ON e.enumtypid = t.oid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE `+schemaFilter+`
		GROUP BY n.nspname, t.typname`, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading enum types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &EnumType{}
		if err := rows.Scan(&t.Schema, &t.Name, pq.Array(&t.Labels)); err != nil {
			return err
		}
		if err := r.catalog.Add(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) readDomains(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, t.typname,
		       pg_catalog.format_type(t.typbasetype, t.typtypmod),
		       t.typnotnull, COALESCE(t.typdefault, '')
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE t.typtype = 'd' AND `+schemaFilter, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d := &Domain{}
		if err := rows.Scan(&d.Schema, &d.Name, &d.BaseType, &d.NotNull, &d.Default); err != nil {
			return err
		}
		if err := r.catalog.Add(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) readSequences(ctx context.Context) error {
	// owned sequences (serial, identity) travel with their table
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, c.relname, s.seqstart, s.seqincrement,
		       s.seqmin, s.seqmax, s.seqcache, s.seqcycle
		FROM pg_catalog.pg_sequence s
		JOIN pg_catalog.pg_class c ON c.oid = s.seqrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE `+schemaFilter+`
		  AND NOT EXISTS (
		    SELECT 1 FROM pg_catalog.pg_depend d
		    WHERE d.classid = 'pg_class'::regclass
		      AND d.objid = c.oid AND d.deptype IN ('a', 'i'))`, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading sequences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &Sequence{}
		if err := rows.Scan(&s.Schema, &s.Name, &s.Start, &s.Increment,
			&s.MinValue, &s.MaxValue, &s.Cache, &s.Cycle); err != nil {
			return err
		}
		if err := r.catalog.Add(s); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) readTables(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, c.relname, a.attname,
		       pg_catalog.format_type(a.atttypid, a.atttypmod),
		       a.attnotnull,
		       COALESCE(pg_catalog.pg_get_expr(ad.adbin, ad.adrelid), ''),
		       COALESCE(pg_catalog.col_description(c.oid, a.attnum), '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
		LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = c.oid AND ad.adnum = a.attnum
		WHERE c.relkind = 'r' AND `+schemaFilter+`
		ORDER BY n.nspname, c.relname, a.attnum`, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading tables: %w", err)
	}

	tables := make(map[string]*Table)
	for rows.Next() {
		var schema, table string
		var col Column
		if err := rows.Scan(&schema, &table, &col.Name, &col.Type, &col.NotNull, &col.Default, &col.Comment); err != nil {
			rows.Close()
			return err
		}
		key := qualify(schema, table)
		t, ok := tables[key]
		if !ok {
			t = &Table{Schema: schema, Name: table}
			tables[key] = t
			if err := r.catalog.Add(t); err != nil {
				rows.Close()
				return err
			}
		}
		t.Columns = append(t.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	pkRows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, c.relname, a.attname
		FROM pg_catalog.pg_index i
		JOIN pg_catalog.pg_class c ON c.oid = i.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		WHERE i.indisprimary AND `+schemaFilter+`
		ORDER BY n.nspname, c.relname, k.ord`, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading primary keys: %w", err)
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var schema, table, col string
		if err := pkRows.Scan(&schema, &table, &col); err != nil {
			return err
		}
		if t, ok := tables[qualify(schema, table)]; ok {
			t.PrimaryKey = append(t.PrimaryKey, col)
		}
	}
	return pkRows.Err()
}

func (r *reader) readViews(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, c.relname,
		       trim(trailing ';' from pg_catalog.pg_get_viewdef(c.oid, true))
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'v' AND `+schemaFilter, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading views: %w", err)
	}

	views := make(map[string]*View)
	for rows.Next() {
		v := &View{}
		if err := rows.Scan(&v.Schema, &v.Name, &v.Definition); err != nil {
			rows.Close()
			return err
		}
		views[qualify(v.Schema, v.Name)] = v
		if err := r.catalog.Add(v); err != nil {
			rows.Close()
			return err
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// view-to-relation dependencies, recorded through the rewrite rule
	depRows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT vn.nspname, vc.relname, sn.nspname, sc.relname, sc.relkind
		FROM pg_catalog.pg_depend d
		JOIN pg_catalog.pg_rewrite rw ON rw.oid = d.objid
		JOIN pg_catalog.pg_class vc ON vc.oid = rw.ev_class
		JOIN pg_catalog.pg_namespace vn ON vn.oid = vc.relnamespace
		JOIN pg_catalog.pg_class sc ON sc.oid = d.refobjid
		JOIN pg_catalog.pg_namespace sn ON sn.oid = sc.relnamespace
		WHERE d.classid = 'pg_rewrite'::regclass
		  AND d.refclassid = 'pg_class'::regclass
		  AND vc.relkind = 'v' AND vc.oid <> d.refobjid`)
	if err != nil {
		return fmt.Errorf("reading view dependencies: %w", err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var vSchema, vName, sSchema, sName, relkind string
		if err := depRows.Scan(&vSchema, &vName, &sSchema, &sName, &relkind); err != nil {
			return err
		}
		v, ok := views[qualify(vSchema, vName)]
		if !ok {
			continue
		}
		switch relkind {
		case "r":
			v.Deps = append(v.Deps, "table "+qualify(sSchema, sName))
		case "v":
			v.Deps = append(v.Deps, "view "+qualify(sSchema, sName))
		}
	}
	return depRows.Err()
}

func (r *reader) readFunctions(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, p.proname,
		       pg_catalog.pg_get_function_identity_arguments(p.oid),
		       pg_catalog.pg_get_functiondef(p.oid)
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind = 'f' AND `+schemaFilter, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading functions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f := &Function{}
		if err := rows.Scan(&f.Schema, &f.Name, &f.IdentArgs, &f.Definition); err != nil {
			return err
		}
		if err := r.catalog.Add(f); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) readIndexes(ctx context.Context) error {
	// primary keys belong to their table; constraint-backing indexes belong
	// to their constraint
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, t.relname, ic.relname, i.indisunique,
		       pg_catalog.pg_get_indexdef(i.indexrelid)
		FROM pg_catalog.pg_index i
		JOIN pg_catalog.pg_class ic ON ic.oid = i.indexrelid
		JOIN pg_catalog.pg_class t ON t.oid = i.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		WHERE NOT i.indisprimary AND `+schemaFilter+`
		  AND NOT EXISTS (
		    SELECT 1 FROM pg_catalog.pg_constraint con
		    WHERE con.conindid = i.indexrelid)`, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		idx := &Index{}
		var def string
		if err := rows.Scan(&idx.Schema, &idx.Table, &idx.Name, &idx.Unique, &def); err != nil {
			return err
		}
		if err := parseIndexDef(def, idx); err != nil {
			return err
		}
		if err := r.catalog.Add(idx); err != nil {
			return err
		}
	}
	return rows.Err()
}

// parseIndexDef splits the output of pg_get_indexdef into access method,
// key expression and predicate, e.g.
// `CREATE INDEX x ON public.t USING btree (lower(email)) WHERE (email <> '')`.
func parseIndexDef(def string, idx *Index) error {
	_, rest, ok := strings.Cut(def, " USING ")
	if !ok {
		return fmt.Errorf("index %s: unparseable definition %q", idx.Name, def)
	}
	using, rest, ok := strings.Cut(rest, " (")
	if !ok {
		return fmt.Errorf("index %s: unparseable definition %q", idx.Name, def)
	}
	if using != "btree" {
		idx.Using = using
	}

	depth := 1
	end := -1
	for i, c := range rest {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return fmt.Errorf("index %s: unbalanced parentheses in %q", idx.Name, def)
	}
	idx.Expr = rest[:end]

	if where, ok := strings.CutPrefix(strings.TrimSpace(rest[end+1:]), "WHERE "); ok {
		idx.Where = where
	}
	return nil
}

func (r *reader) readConstraints(ctx context.Context) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT n.nspname, COALESCE(c.relname, ''), COALESCE(dt.typname, ''),
		       con.conname, con.contype,
		       pg_catalog.pg_get_constraintdef(con.oid),
		       COALESCE(rc.relname, '')
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_namespace n ON n.oid = con.connamespace
		LEFT JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		LEFT JOIN pg_catalog.pg_class rc ON rc.oid = con.confrelid
		WHERE con.contype IN ('c', 'f') AND `+schemaFilter, r.excludeArg())
	if err != nil {
		return fmt.Errorf("reading constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		con := &Constraint{}
		var contype, def string
		if err := rows.Scan(&con.Schema, &con.Table, &con.Domain, &con.Name, &contype, &def, &con.RefTable); err != nil {
			return err
		}
		if err := parseConstraintDef(contype, def, con); err != nil {
			return err
		}
		if err := r.catalog.Add(con); err != nil {
			return err
		}
	}
	return rows.Err()
}

// parseConstraintDef splits the output of pg_get_constraintdef into the
// fields of a constraint change.
func parseConstraintDef(contype, def string, con *Constraint) error {
	def = strings.TrimSuffix(def, " NOT VALID")
	switch contype {
	case "c":
		check, ok := strings.CutPrefix(def, "CHECK ")
		if !ok {
			return fmt.Errorf("constraint %s: unparseable definition %q", con.Name, def)
		}
		con.Check = check
	case "f":
		rest, ok := strings.CutPrefix(def, "FOREIGN KEY (")
		if !ok {
			return fmt.Errorf("constraint %s: unparseable definition %q", con.Name, def)
		}
		cols, refs, ok := strings.Cut(rest, ") REFERENCES ")
		if !ok {
			return fmt.Errorf("constraint %s: unparseable definition %q", con.Name, def)
		}
		con.ForeignKey = cols
		con.References = refs
	default:
		return fmt.Errorf("constraint %s: unsupported type %q", con.Name, contype)
	}
	return nil
}

// resolveTableDeps wires tables to the domains, enum types and sequences
// their columns mention, so the dependency sort creates those first.
func (r *reader) resolveTableDeps() {
	for _, obj := range r.catalog.Objects {
		t, ok := obj.(*Table)
		if !ok {
			continue
		}
		for _, col := range t.Columns {
			for _, key := range typeKeys(t.Schema, col.Type) {
				if _, ok := r.catalog.Objects[key]; ok {
					t.Deps = append(t.Deps, key)
				}
			}
			if seq := sequenceFromDefault(col.Default); seq != "" {
				key := "sequence " + maybeQualify(t.Schema, seq)
				if _, ok := r.catalog.Objects[key]; ok {
					t.Deps = append(t.Deps, key)
				}
			}
		}
	}
}

// typeKeys lists the catalog keys a column type name could refer to.
// format_type omits the schema for types on the search path, so both the
// bare and the schema-qualified spelling are tried.
func typeKeys(schema, typeName string) []string {
	qualified := maybeQualify(schema, typeName)
	return []string{
		"domain " + qualified,
		"type " + qualified,
	}
}

func maybeQualify(schema, name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return qualify(schema, name)
}

// sequenceFromDefault extracts the sequence name from a default expression
// like `nextval('billing.invoice_no'::regclass)`.
func sequenceFromDefault(def string) string {
	rest, ok := strings.CutPrefix(def, "nextval('")
	if !ok {
		return ""
	}
	name, _, ok := strings.Cut(rest, "'")
	if !ok {
		return ""
	}
	return strings.ReplaceAll(name, `"`, "")
}
