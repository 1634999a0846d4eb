// SPDX-License-Identifier: Apache-2.0

package revisions_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/revisions"
)

func writeRevision(t *testing.T, dir string, n int, migration, schema string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d-migration.yml", n)), []byte(migration), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d-schema.sql", n)), []byte(schema), 0o644))
}

const minimalMigration = `message: create users
pre_deploy:
  - run_ddl:
      up: "CREATE TABLE users(u_id int, email text, mobile text);"
      down: "DROP TABLE users;"
`

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, minimalMigration, "CREATE TABLE users(u_id int, email text, mobile text);\n")
	writeRevision(t, dir, 2, `message: add name
pre_deploy:
  - run_ddl:
      up: "ALTER TABLE users ADD COLUMN name text;"
      down: "ALTER TABLE users DROP COLUMN name;"
`, "CREATE TABLE users(u_id int, email text, mobile text, name text);\n")

	revs, err := revisions.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, revs, 2)

	assert.Equal(t, 1, revs[0].Number)
	assert.Equal(t, "create users", revs[0].Migration.Message)
	assert.Len(t, revs[0].Migration.PreDeploy, 1)
	assert.Empty(t, revs[0].Migration.PostDeploy)

	// hashes are SHA-256 over the raw bytes
	assert.Len(t, revs[0].MigrationHash, 32)
	assert.Len(t, revs[0].SchemaHash, 32)
	assert.NotEqual(t, revs[0].MigrationHash, revs[1].MigrationHash)
}

func TestLoadDirGap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, minimalMigration, "s1")
	writeRevision(t, dir, 3, minimalMigration, "s3")

	_, err := revisions.LoadDir(dir)
	assert.ErrorIs(t, err, revisions.MissingRevisionError{GapAt: 2})
}

func TestLoadDirMalformedYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, "message: [unclosed", "s1")

	_, err := revisions.LoadDir(dir)
	var malformed revisions.MalformedRevisionError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "1-migration.yml", malformed.Filename)
}

func TestLoadDirRejectsUnknownChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, `message: bad
pre_deploy:
  - cluster_index:
      name: x
`, "s1")

	_, err := revisions.LoadDir(dir)
	var malformed revisions.MalformedRevisionError
	require.ErrorAs(t, err, &malformed)
}

func TestLoadDirRejectsMissingRequiredField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// create_index without expr fails JSON-schema validation
	writeRevision(t, dir, 1, `message: bad
pre_deploy:
  - create_index:
      name: users_email_idx
      table: users
`, "s1")

	_, err := revisions.LoadDir(dir)
	var malformed revisions.MalformedRevisionError
	require.ErrorAs(t, err, &malformed)
}

func TestLoadDirMissingSchemaFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1-migration.yml"), []byte(minimalMigration), 0o644))

	_, err := revisions.LoadDir(dir)
	var malformed revisions.MalformedRevisionError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "1-schema.sql", malformed.Filename)
}

func TestLoadWithConfig(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "migrations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pgrev.yml"), []byte(
		"schema_dump_command: pg_dump --schema-only app\n"), 0o644))
	writeRevision(t, filepath.Join(root, "migrations"), 1, minimalMigration, "s1")

	repo, err := revisions.Load(filepath.Join(root, "pgrev.yml"))
	require.NoError(t, err)

	assert.Equal(t, "migrations", repo.Config.MigrationsDir)
	assert.Equal(t, "migrations/incantation.sql", repo.Config.IncantationPath)
	require.NotNil(t, repo.Config.CrashOnIncompatibleVersion)
	assert.True(t, *repo.Config.CrashOnIncompatibleVersion)

	require.Len(t, repo.Revisions, 1)
	assert.Equal(t, 2, repo.NextNumber())
	assert.Nil(t, repo.Revision(0))
	assert.Nil(t, repo.Revision(2))
	require.NotNil(t, repo.Revision(1))

	first, ok := repo.Revision(1).FirstIndex()
	require.True(t, ok)
	assert.Equal(t, changes.PhaseIndex{
		Revision:      1,
		MigrationHash: repo.Revision(1).MigrationHash,
		SchemaHash:    repo.Revision(1).SchemaHash,
		PreDeploy:     true,
	}, first)
}
