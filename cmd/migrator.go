// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"

	"github.com/pterm/pterm"

	"github.com/pgrev/pgrev/cmd/flags"
	"github.com/pgrev/pgrev/pkg/migrate"
	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

var errNotInitialized = errors.New("pgrev is not initialized, run 'pgrev init' to initialize")

// newMigrator loads the revision repo and connects a migrator according to
// the global flags.
func newMigrator(ctx context.Context) (*migrate.Migrate, error) {
	repo, err := revisions.Load(flags.ConfigPath())
	if err != nil {
		return nil, err
	}

	st, err := state.New(ctx, flags.PostgresURL(), flags.StateSchema())
	if err != nil {
		return nil, err
	}

	opts := []migrate.Option{
		migrate.WithLockTimeoutMs(flags.LockTimeout()),
	}
	if flags.Role() != "" {
		opts = append(opts, migrate.WithRole(flags.Role()))
	}
	if flags.Verbose() {
		opts = append(opts, migrate.WithLogger(ptermLogger{}))
	}

	m, err := migrate.New(ctx, flags.PostgresURL(), st, repo, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return m, nil
}

// newMigratorWithInitCheck fails with a hint towards 'pgrev init' when the
// state schema is missing.
func newMigratorWithInitCheck(ctx context.Context) (*migrate.Migrate, error) {
	m, err := newMigrator(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := m.State().IsSetUp(ctx)
	if err != nil {
		m.Close()
		return nil, err
	}
	if !ok {
		m.Close()
		return nil, errNotInitialized
	}
	return m, nil
}

// ptermLogger adapts pterm's printers to the migrator's logger.
type ptermLogger struct{}

func (ptermLogger) Infof(format string, args ...any) {
	pterm.Info.Printfln(format, args...)
}

func (ptermLogger) Warnf(format string, args ...any) {
	pterm.Warning.Printfln(format, args...)
}
