// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"sigs.k8s.io/yaml"

	"github.com/pgrev/pgrev/internal/connstr"
	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/diff"
	"github.com/pgrev/pgrev/pkg/revisions"
)

// Generate writes the next revision: it dumps the declared schema with the
// configured command, diffs it against the previous revision's schema using
// two scratch databases, and serialises the resulting change lists. It also
// refreshes the connection incantation for the new revision.
func (m *Migrate) Generate(ctx context.Context, message string) error {
	if m.repo.Config == nil || m.repo.Dir == "" {
		return fmt.Errorf("revision generation needs a loaded repo config")
	}

	n := m.repo.NextNumber()

	schemaSQL, err := m.dumpSchema(ctx)
	if err != nil {
		return err
	}

	var prevSchemaSQL []byte
	if prev := m.repo.Revision(n - 1); prev != nil {
		prevSchemaSQL = prev.SchemaText
	}

	pre, post, err := m.diffSchemas(ctx, prevSchemaSQL, schemaSQL)
	if err != nil {
		return err
	}

	migration := revisions.Migration{
		Message:    message,
		PreDeploy:  pre,
		PostDeploy: post,
	}
	migrationYAML, err := yaml.Marshal(migration)
	if err != nil {
		return fmt.Errorf("unable to serialise migration: %w", err)
	}

	schemaPath := filepath.Join(m.repo.Dir, fmt.Sprintf("%d-schema.sql", n))
	if err := os.WriteFile(schemaPath, schemaSQL, 0o644); err != nil {
		return err
	}
	migrationPath := filepath.Join(m.repo.Dir, fmt.Sprintf("%d-migration.yml", n))
	if err := os.WriteFile(migrationPath, migrationYAML, 0o644); err != nil {
		return err
	}

	schemaHash := sha256.Sum256(schemaSQL)
	incantation := m.state.Incantation(n, schemaHash[:])
	if err := os.WriteFile(m.repo.IncantationPath(), []byte(incantation), 0o644); err != nil {
		return err
	}

	m.logger.Infof("wrote revision %d: %s", n, migrationPath)
	return nil
}

// dumpSchema runs the configured schema dump command and returns its stdout.
func (m *Migrate) dumpSchema(ctx context.Context) ([]byte, error) {
	argv, err := m.repo.Config.DumpCommand()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("schema dump command failed: %w: %s", err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("schema dump command failed: %w", err)
	}
	return out, nil
}

// diffSchemas loads two schema scripts into scratch databases and diffs their
// catalogs.
func (m *Migrate) diffSchemas(ctx context.Context, oldSQL, newSQL []byte) (pre, post changes.Changes, err error) {
	oldCatalog, err := m.scratchCatalog(ctx, oldSQL)
	if err != nil {
		return nil, nil, err
	}
	newCatalog, err := m.scratchCatalog(ctx, newSQL)
	if err != nil {
		return nil, nil, err
	}
	return diff.Diff(oldCatalog, newCatalog)
}

// scratchCatalog creates a throwaway database, loads schemaSQL into it and
// snapshots the resulting catalog. The database is dropped on return.
func (m *Migrate) scratchCatalog(ctx context.Context, schemaSQL []byte) (*diff.Catalog, error) {
	name := "pgrev_diff_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	if _, err := m.pgConn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return nil, fmt.Errorf("unable to create scratch database: %w", err)
	}
	defer func() {
		// drop even when the surrounding context was cancelled
		_, dropErr := m.pgConn.ExecContext(context.WithoutCancel(ctx),
			"DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name))
		if dropErr != nil {
			m.logger.Warnf("unable to drop scratch database %s: %v", name, dropErr)
		}
	}()

	scratchStr, err := connstr.WithDatabase(connstr.ToDSN(m.pgURL), name)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("postgres", scratchStr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if len(schemaSQL) > 0 {
		if _, err := conn.ExecContext(ctx, string(schemaSQL)); err != nil {
			return nil, fmt.Errorf("unable to load schema into scratch database: %w", err)
		}
	}

	return diff.ReadCatalog(ctx, conn)
}
