// SPDX-License-Identifier: Apache-2.0

package changes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/pgrev/pgrev/pkg/db"
)

var (
	_ Change    = (*BeginRename)(nil)
	_ Change    = (*FinishRename)(nil)
	_ Direction = (*CreateRenameView)(nil)
	_ Direction = (*DropRenameView)(nil)
)

// BeginRename publishes the new column names through a shim view without
// touching the physical columns. Old binaries keep reading public.<table>;
// new binaries read <shim>.<table> via their search_path.
type BeginRename struct {
	Table   string            `json:"table"`
	Renames map[string]string `json:"renames"`
}

func (c *BeginRename) Phases() []Phase {
	return []Phase{
		{
			Up:   CreateRenameView{Table: c.Table, Renames: c.Renames},
			Down: DropRenameView{Table: c.Table},
		},
	}
}

func (c *BeginRename) Validate() error {
	return validateRename(c.Table, c.Renames)
}

// FinishRename performs the physical column renames and retires the shim view
// created by the paired BeginRename in the previous revision.
type FinishRename struct {
	Table   string            `json:"table"`
	Renames map[string]string `json:"renames"`
}

func (c *FinishRename) Phases() []Phase {
	return []Phase{
		{
			Up:   TxDDL{SQL: renameColumnsSQL(c.Table, c.Renames, false)},
			Down: TxDDL{SQL: renameColumnsSQL(c.Table, c.Renames, true)},
		},
		{
			Up: DropRenameView{Table: c.Table, InPrevious: true},
			// the view is rebuilt while the physical columns still carry the
			// new names, so no aliasing is needed; the physical un-rename in
			// the previous phase's down then rewrites it to read the old
			// columns under the new names, which is exactly the state the
			// paired begin_rename left behind
			Down: CreateRenameView{Table: c.Table, InPrevious: true},
		},
	}
}

func (c *FinishRename) Validate() error {
	return validateRename(c.Table, c.Renames)
}

func validateRename(table string, renames map[string]string) error {
	if table == "" {
		return FieldRequiredError{Name: "table"}
	}
	if len(renames) == 0 {
		return FieldRequiredError{Name: "renames"}
	}
	seen := make(map[string]struct{}, len(renames))
	for old, renamed := range renames {
		if old == "" || renamed == "" {
			return InvalidChangeError{Reason: "renames must map non-empty old names to non-empty new names"}
		}
		if _, ok := seen[renamed]; ok {
			return InvalidChangeError{Reason: fmt.Sprintf("duplicate rename target %q", renamed)}
		}
		seen[renamed] = struct{}{}
	}
	return nil
}

func renameColumnsSQL(table string, renames map[string]string, reverse bool) string {
	stmts := make([]string, 0, len(renames))
	for _, old := range sortedKeys(renames) {
		from, to := old, renames[old]
		if reverse {
			from, to = to, from
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			pq.QuoteIdentifier(table),
			pq.QuoteIdentifier(from),
			pq.QuoteIdentifier(to)))
	}
	return strings.Join(stmts, ";\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreateRenameView is a transactional direction that builds the shim view
// from the live column set of public.<table>, selecting every column and
// aliasing the renamed ones.
type CreateRenameView struct {
	Table   string
	Renames map[string]string

	// InPrevious targets the previous revision's shim schema. Set when the
	// view being (re)built belongs to the paired begin_rename one revision
	// back.
	InPrevious bool
}

func (CreateRenameView) Discipline() Discipline { return DisciplineTransactional }

func (d CreateRenameView) Statements(ctx context.Context, q db.Queryer, shims ShimSchemas) ([]string, error) {
	shimSchema := shims.Current
	if d.InPrevious {
		shimSchema = shims.Previous
	}
	cols, err := tableColumns(ctx, q, d.Table)
	if err != nil {
		return nil, err
	}

	colSet := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colSet[c] = struct{}{}
	}
	for old := range d.Renames {
		if _, ok := colSet[old]; !ok {
			return nil, SchemaMismatchError{Table: d.Table, Column: old}
		}
	}

	selects := make([]string, 0, len(cols))
	for _, c := range cols {
		if renamed, ok := d.Renames[c]; ok {
			selects = append(selects, fmt.Sprintf("%s AS %s", pq.QuoteIdentifier(c), pq.QuoteIdentifier(renamed)))
		} else {
			selects = append(selects, pq.QuoteIdentifier(c))
		}
	}

	stmt := fmt.Sprintf("CREATE VIEW %s.%s AS SELECT %s FROM public.%s",
		pq.QuoteIdentifier(shimSchema),
		pq.QuoteIdentifier(d.Table),
		strings.Join(selects, ", "),
		pq.QuoteIdentifier(d.Table))
	return []string{stmt}, nil
}

// DropRenameView drops the shim view. The paired CreateRenameView direction
// is responsible for it existing.
type DropRenameView struct {
	Table      string
	InPrevious bool
}

func (DropRenameView) Discipline() Discipline { return DisciplineTransactional }

func (d DropRenameView) Statements(_ context.Context, _ db.Queryer, shims ShimSchemas) ([]string, error) {
	shimSchema := shims.Current
	if d.InPrevious {
		shimSchema = shims.Previous
	}
	return []string{fmt.Sprintf("DROP VIEW %s.%s",
		pq.QuoteIdentifier(shimSchema),
		pq.QuoteIdentifier(d.Table))}, nil
}

func tableColumns(ctx context.Context, q db.Queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("unable to read columns of table %q: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
