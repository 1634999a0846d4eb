// SPDX-License-Identifier: Apache-2.0

package changes

import (
	"fmt"

	"github.com/lib/pq"
)

var (
	_ Change = (*CreateIndex)(nil)
	_ Change = (*DropIndex)(nil)
)

// Index carries the definition shared by CreateIndex and DropIndex, so a
// dropped index can be rebuilt on downgrade with its exact definition.
type Index struct {
	Unique bool   `json:"unique,omitempty"`
	Name   string `json:"name"`
	Table  string `json:"table"`
	Expr   string `json:"expr"`
	Using  string `json:"using,omitempty"`
	Where  string `json:"where,omitempty"`
}

func (i Index) createSQL() string {
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	using := ""
	if i.Using != "" {
		using = "USING " + i.Using
	}
	where := ""
	if i.Where != "" {
		where = "WHERE " + i.Where
	}
	return fmt.Sprintf("CREATE %sINDEX CONCURRENTLY IF NOT EXISTS %s on %s %s (%s) %s",
		unique,
		pq.QuoteIdentifier(i.Name),
		pq.QuoteIdentifier(i.Table),
		using,
		i.Expr,
		where)
}

func (i Index) dropSQL() string {
	return fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", pq.QuoteIdentifier(i.Name))
}

func (i Index) validate() error {
	if i.Name == "" {
		return FieldRequiredError{Name: "name"}
	}
	if i.Table == "" {
		return FieldRequiredError{Name: "table"}
	}
	if i.Expr == "" {
		return FieldRequiredError{Name: "expr"}
	}
	return nil
}

// CreateIndex builds an index with CREATE INDEX CONCURRENTLY. Concurrent
// builds cannot run in a transaction block, so the single phase is
// idempotent in both directions.
type CreateIndex struct {
	Index
}

func (c *CreateIndex) Phases() []Phase {
	return []Phase{
		{Up: IdempotentDDL{SQL: c.createSQL()}, Down: IdempotentDDL{SQL: c.dropSQL()}},
	}
}

func (c *CreateIndex) Validate() error {
	return c.validate()
}

// DropIndex is CreateIndex with the directions swapped.
type DropIndex struct {
	Index
}

func (c *DropIndex) Phases() []Phase {
	return []Phase{
		{Up: IdempotentDDL{SQL: c.dropSQL()}, Down: IdempotentDDL{SQL: c.createSQL()}},
	}
}

func (c *DropIndex) Validate() error {
	return c.validate()
}
