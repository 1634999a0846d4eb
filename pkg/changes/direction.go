// SPDX-License-Identifier: Apache-2.0

package changes

import (
	"context"

	"github.com/pgrev/pgrev/pkg/db"
)

// Discipline describes how a direction's DDL must be executed.
type Discipline int

const (
	// DisciplineTransactional directions run inside a single transaction
	// together with their audit bookkeeping.
	DisciplineTransactional Discipline = iota

	// DisciplineIdempotent directions run outside any transaction, bracketed
	// by two small audit transactions. Their DDL must be safe to re-run
	// (`IF [NOT] EXISTS`), because a crash between the brackets is recovered
	// by executing the DDL again.
	DisciplineIdempotent
)

// ShimSchemas names the shim schemas a direction may target: the executing
// revision's own, and the previous revision's. A finish_rename retires the
// view its begin_rename left in the previous revision's shim.
type ShimSchemas struct {
	Current  string
	Previous string
}

// Direction is one executable side (up or down) of a Phase.
type Direction interface {
	Discipline() Discipline

	// Statements returns the DDL to execute. Directions that build their SQL
	// from the live catalog (rename shim views) use the queryer.
	Statements(ctx context.Context, q db.Queryer, shims ShimSchemas) ([]string, error)
}

// Phase is the unit of execution and auditing.
type Phase struct {
	Up   Direction
	Down Direction
}

// TxDDL runs its statement inside the audit transaction.
type TxDDL struct {
	SQL string
}

func (TxDDL) Discipline() Discipline { return DisciplineTransactional }

func (d TxDDL) Statements(_ context.Context, _ db.Queryer, _ ShimSchemas) ([]string, error) {
	if d.SQL == "" {
		return nil, nil
	}
	return []string{d.SQL}, nil
}

// IdempotentDDL runs its statement outside any transaction. Postgres rejects
// `CREATE INDEX CONCURRENTLY` and `DROP INDEX CONCURRENTLY` inside a
// transaction block.
type IdempotentDDL struct {
	SQL string
}

func (IdempotentDDL) Discipline() Discipline { return DisciplineIdempotent }

func (d IdempotentDDL) Statements(_ context.Context, _ db.Queryer, _ ShimSchemas) ([]string, error) {
	if d.SQL == "" {
		return nil, nil
	}
	return []string{d.SQL}, nil
}

// NoOp is a transactional direction that executes nothing. It still produces
// an audit row, so forward and reverse execution stay symmetric.
type NoOp struct{}

func (NoOp) Discipline() Discipline { return DisciplineTransactional }

func (NoOp) Statements(_ context.Context, _ db.Queryer, _ ShimSchemas) ([]string, error) {
	return nil, nil
}
