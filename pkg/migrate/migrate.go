// SPDX-License-Identifier: Apache-2.0

// Package migrate drives revision application: it derives the resume point
// from the audit log, executes phases under their discipline, and manages the
// per-revision shim schemas.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgrev/pgrev/internal/connstr"
	"github.com/pgrev/pgrev/pkg/db"
	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

type Migrate struct {
	pgConn db.DB

	// pgURL is kept for revision generation, which needs to create scratch
	// databases on the same server.
	pgURL string

	state  *state.State
	repo   *revisions.Repo
	logger Logger
}

func New(ctx context.Context, pgURL string, st *state.State, repo *revisions.Repo, opts ...Option) (*Migrate, error) {
	options := &options{logger: noopLogger{}}
	for _, o := range opts {
		o(options)
	}

	conn, err := sql.Open("postgres", connstr.ToDSN(pgURL))
	if err != nil {
		return nil, err
	}

	// the migrator is single-threaded; one backend keeps session-level
	// settings effective
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}

	if options.lockTimeoutMs > 0 {
		_, err = conn.ExecContext(ctx, fmt.Sprintf("SET lock_timeout to '%dms'", options.lockTimeoutMs))
		if err != nil {
			return nil, fmt.Errorf("unable to set lock_timeout: %w", err)
		}
	}

	if options.role != "" {
		_, err = conn.ExecContext(ctx, fmt.Sprintf("SET ROLE %s", pq.QuoteIdentifier(options.role)))
		if err != nil {
			return nil, fmt.Errorf("unable to set role to '%s': %w", options.role, err)
		}
	}

	return &Migrate{
		pgConn: &db.RDB{DB: conn},
		pgURL:  pgURL,
		state:  st,
		repo:   repo,
		logger: options.logger,
	}, nil
}

func (m *Migrate) Init(ctx context.Context) error {
	return m.state.Init(ctx)
}

// State exposes the bookkeeping layer, e.g. for status reporting.
func (m *Migrate) State() *state.State {
	return m.state
}

func (m *Migrate) Close() error {
	if err := m.state.Close(); err != nil {
		return err
	}

	return m.pgConn.Close()
}

// ensureSetUp fails early when the bookkeeping schema is missing.
func (m *Migrate) ensureSetUp(ctx context.Context) error {
	ok, err := m.state.IsSetUp(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return state.ErrNotInitialized
	}
	return nil
}
