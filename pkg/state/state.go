// SPDX-License-Identifier: Apache-2.0

// Package state is the durable bookkeeping layer: the revisions table, the
// migration audit log and the connections registry, all living in a dedicated
// schema on the target database. The audit log is also the coordination
// primitive: a partial unique index allows at most one unfinished phase, which
// is what keeps two migrators from running at once.
package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgrev/pgrev/internal/connstr"
	"github.com/pgrev/pgrev/pkg/db"
)

// DefaultSchema is the schema holding the migrator's own tables.
const DefaultSchema = "migrator_status"

const sqlInit = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.revisions (
	revision		INT NOT NULL,
	migration_hash	BYTEA NOT NULL,
	schema_hash		BYTEA NOT NULL,
	is_deleted		BOOLEAN NOT NULL DEFAULT false,
	created_at		TIMESTAMPTZ NOT NULL DEFAULT now(),

	PRIMARY KEY (revision, migration_hash, schema_hash)
);

-- Every live revision number is unique; tombstoned rows are kept for audit
CREATE UNIQUE INDEX IF NOT EXISTS revisions_live_number
	ON %[1]s.revisions (revision) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS %[1]s.migration_audit (
	id				SERIAL PRIMARY KEY,
	revision		INT NOT NULL,
	migration_hash	BYTEA NOT NULL,
	schema_hash		BYTEA NOT NULL,
	pre_deploy		BOOLEAN NOT NULL,
	change			INT NOT NULL,
	phase			INT NOT NULL,
	is_revert		BOOLEAN NOT NULL,
	started_at		TIMESTAMPTZ NOT NULL,
	finished_at		TIMESTAMPTZ,

	CHECK (finished_at IS NULL OR finished_at >= started_at)
);

-- At most one phase may be in flight, across all migrator processes
CREATE UNIQUE INDEX IF NOT EXISTS audit_one_unfinished
	ON %[1]s.migration_audit ((1)) WHERE finished_at IS NULL;

CREATE TABLE IF NOT EXISTS %[1]s.connections (
	pid				INT PRIMARY KEY,
	revision		INT NOT NULL,
	schema_hash		BYTEA NOT NULL,
	backend_start	TIMESTAMPTZ NOT NULL
);
`

// State provides access to the migrator's bookkeeping schema.
type State struct {
	pgConn db.DB
	schema string
}

func New(ctx context.Context, pgURL, stateSchema string) (*State, error) {
	conn, err := sql.Open("postgres", connstr.ToDSN(pgURL))
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}

	return &State{
		pgConn: &db.RDB{DB: conn},
		schema: stateSchema,
	}, nil
}

// Init creates the bookkeeping schema. The DDL is idempotent.
func (s *State) Init(ctx context.Context) error {
	_, err := s.pgConn.ExecContext(ctx, fmt.Sprintf(sqlInit, pq.QuoteIdentifier(s.schema)))
	return err
}

// IsSetUp reports whether the bookkeeping schema exists.
func (s *State) IsSetUp(ctx context.Context) (bool, error) {
	rows, err := s.pgConn.QueryContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.schemata
			WHERE schema_name = $1
		)`, s.schema)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := db.ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Schema returns the name of the bookkeeping schema.
func (s *State) Schema() string {
	return s.schema
}

func (s *State) Close() error {
	return s.pgConn.Close()
}

// qualified returns the quoted bookkeeping schema name for use in SQL.
func (s *State) qualified() string {
	return pq.QuoteIdentifier(s.schema)
}
