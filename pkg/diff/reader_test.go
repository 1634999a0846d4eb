// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexDef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  string
		want Index
	}{
		{
			name: "plain btree",
			def:  `CREATE INDEX users_email_idx ON public.users USING btree (email)`,
			want: Index{Expr: "email"},
		},
		{
			name: "expression with nested parens",
			def:  `CREATE INDEX users_email_idx ON public.users USING btree (lower((email)::text))`,
			want: Index{Expr: "lower((email)::text)"},
		},
		{
			name: "non-default access method",
			def:  `CREATE INDEX docs_body_idx ON public.docs USING gin (body)`,
			want: Index{Using: "gin", Expr: "body"},
		},
		{
			name: "partial index",
			def:  `CREATE UNIQUE INDEX users_email_idx ON public.users USING btree (email) WHERE (email <> ''::text)`,
			want: Index{Expr: "email", Where: "(email <> ''::text)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var idx Index
			require.NoError(t, parseIndexDef(tt.def, &idx))
			assert.Equal(t, tt.want.Using, idx.Using)
			assert.Equal(t, tt.want.Expr, idx.Expr)
			assert.Equal(t, tt.want.Where, idx.Where)
		})
	}

	var idx Index
	assert.Error(t, parseIndexDef("CREATE INDEX broken", &idx))
	assert.Error(t, parseIndexDef("CREATE INDEX x ON t USING btree (lower(email", &idx))
}

func TestParseConstraintDef(t *testing.T) {
	t.Parallel()

	t.Run("check", func(t *testing.T) {
		con := Constraint{Name: "users_email_len"}
		require.NoError(t, parseConstraintDef("c", "CHECK ((length(email) > 0))", &con))
		assert.Equal(t, "((length(email) > 0))", con.Check)
	})

	t.Run("check not valid", func(t *testing.T) {
		con := Constraint{Name: "users_email_len"}
		require.NoError(t, parseConstraintDef("c", "CHECK ((length(email) > 0)) NOT VALID", &con))
		assert.Equal(t, "((length(email) > 0))", con.Check)
	})

	t.Run("foreign key", func(t *testing.T) {
		con := Constraint{Name: "orders_user_fk"}
		require.NoError(t, parseConstraintDef("f", "FOREIGN KEY (user_id) REFERENCES users(u_id)", &con))
		assert.Equal(t, "user_id", con.ForeignKey)
		assert.Equal(t, "users(u_id)", con.References)
	})

	t.Run("unsupported type", func(t *testing.T) {
		con := Constraint{Name: "users_pkey"}
		assert.Error(t, parseConstraintDef("p", "PRIMARY KEY (u_id)", &con))
	})
}

func TestSequenceFromDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "invoice_no", sequenceFromDefault("nextval('invoice_no'::regclass)"))
	assert.Equal(t, "billing.invoice_no", sequenceFromDefault(`nextval('billing."invoice_no"'::regclass)`))
	assert.Empty(t, sequenceFromDefault("'fixed'::text"))
	assert.Empty(t, sequenceFromDefault(""))
}

func TestTableDepsResolveToCatalogObjects(t *testing.T) {
	t.Parallel()

	r := &reader{catalog: NewCatalog()}
	table := &Table{Schema: "public", Name: "orders", Columns: []Column{
		{Name: "status", Type: "order_status"},
		{Name: "total", Type: "money_amount"},
		{Name: "invoice", Type: "bigint", Default: "nextval('invoice_no'::regclass)"},
		{Name: "note", Type: "text"},
	}}
	r.catalog.MustAdd(
		table,
		&EnumType{Schema: "public", Name: "order_status", Labels: []string{"open"}},
		&Domain{Schema: "public", Name: "money_amount", BaseType: "numeric(12,2)"},
		&Sequence{Schema: "public", Name: "invoice_no", Start: 1, Increment: 1, MinValue: 1, Cache: 1},
	)

	r.resolveTableDeps()
	assert.ElementsMatch(t, []string{
		"type public.order_status",
		"domain public.money_amount",
		"sequence public.invoice_no",
	}, table.Deps)
}
