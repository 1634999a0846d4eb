// SPDX-License-Identifier: Apache-2.0

package migrate_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgrev/pgrev/internal/testutils"
	"github.com/pgrev/pgrev/pkg/changes"
	"github.com/pgrev/pgrev/pkg/diff"
	"github.com/pgrev/pgrev/pkg/migrate"
	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func writeRevision(t *testing.T, dir string, n int, migration, schema string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d-migration.yml", n)), []byte(migration), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d-schema.sql", n)), []byte(schema), 0o644))
}

func loadRepo(t *testing.T, dir string) *revisions.Repo {
	t.Helper()
	revs, err := revisions.LoadDir(dir)
	require.NoError(t, err)
	return &revisions.Repo{Revisions: revs, Dir: dir}
}

const createUsersMigration = `message: create users
pre_deploy:
  - run_ddl:
      up: "CREATE TABLE users(u_id int, email text);"
      down: "DROP TABLE users;"
`

const addNameMigration = `message: add name
pre_deploy:
  - run_ddl:
      up: "ALTER TABLE users ADD COLUMN name text;"
      down: "ALTER TABLE users DROP COLUMN name;"
`

func twoRevisionRepo(t *testing.T) *revisions.Repo {
	t.Helper()
	dir := t.TempDir()
	writeRevision(t, dir, 1, createUsersMigration, "CREATE TABLE users(u_id int, email text);\n")
	writeRevision(t, dir, 2, addNameMigration, "CREATE TABLE users(u_id int, email text, name text);\n")
	return loadRepo(t, dir)
}

func columnNames(t *testing.T, conn *sql.DB, schema, table string) []string {
	t.Helper()
	rows, err := conn.Query(`
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	return cols
}

func schemaExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := conn.QueryRow(
		"SELECT EXISTS (SELECT FROM information_schema.schemata WHERE schema_name = $1)", name).
		Scan(&exists)
	require.NoError(t, err)
	return exists
}

func indexExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := conn.QueryRow(
		"SELECT EXISTS (SELECT FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1)", name).
		Scan(&exists)
	require.NoError(t, err)
	return exists
}

func auditCount(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	err := conn.QueryRow(
		fmt.Sprintf("SELECT count(*) FROM %s.migration_audit", pq.QuoteIdentifier(state.DefaultSchema))).
		Scan(&n)
	require.NoError(t, err)
	return n
}

func TestUpAppliesAllRevisions(t *testing.T) {
	t.Parallel()

	repo := twoRevisionRepo(t)
	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		require.NoError(t, mig.Up(ctx))

		assert.Equal(t, []string{"u_id", "email", "name"}, columnNames(t, conn, "public", "users"))
		assert.Equal(t, 2, auditCount(t, conn))

		revs, err := mig.State().Revisions(ctx)
		require.NoError(t, err)
		require.Len(t, revs, 2)
		assert.Equal(t, repo.Revision(2).SchemaHash, revs[2].SchemaHash)

		latest, err := mig.State().LatestAudit(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.True(t, latest.Finished())
		assert.False(t, latest.IsRevert)
		assert.Equal(t, 2, latest.Index.Revision)

		// the per-revision shim schemas are gone again
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(1)))
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(2)))

		// a second run finds nothing to do
		require.NoError(t, mig.Up(ctx))
		assert.Equal(t, 2, auditCount(t, conn))
	})
}

func TestUpRequiresInit(t *testing.T) {
	t.Parallel()

	repo := twoRevisionRepo(t)
	testutils.WithConnectionToContainer(t, func(_ *sql.DB, connStr string) {
		ctx := context.Background()

		st, err := state.New(ctx, connStr, state.DefaultSchema)
		require.NoError(t, err)

		mig, err := migrate.New(ctx, connStr, st, repo)
		require.NoError(t, err)
		defer mig.Close()

		assert.ErrorIs(t, mig.Up(ctx), state.ErrNotInitialized)
		assert.ErrorIs(t, mig.Down(ctx, 0), state.ErrNotInitialized)
	})
}

func TestUpBuildsIndexOutsideTransaction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, `message: create users with index
pre_deploy:
  - run_ddl:
      up: "CREATE TABLE users(u_id int, email text);"
      down: "DROP TABLE users;"
post_deploy:
  - create_index:
      name: users_email_idx
      table: users
      expr: email
`, "CREATE TABLE users(u_id int, email text);\nCREATE INDEX users_email_idx ON users (email);\n")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		require.NoError(t, mig.Up(ctx))

		assert.True(t, indexExists(t, conn, "users_email_idx"))
		assert.Equal(t, 2, auditCount(t, conn))

		require.NoError(t, mig.Down(ctx, 0))
		assert.False(t, indexExists(t, conn, "users_email_idx"))
	})
}

func TestUpStopsOnFailedValidationAndResumes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, `message: create products
pre_deploy:
  - run_ddl:
      up: "CREATE TABLE products(p_id int, price int); INSERT INTO products VALUES (1, -5);"
      down: "DROP TABLE products;"
`, "CREATE TABLE products(p_id int, price int);\n")
	writeRevision(t, dir, 2, `message: require positive prices
pre_deploy:
  - add_constraint:
      table: products
      name: products_price_check
      check: (price > 0)
`, "CREATE TABLE products(p_id int, price int CHECK (price > 0));\n")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		// the NOT VALID phase succeeds, the VALIDATE phase trips over the row
		err := mig.Up(ctx)
		require.Error(t, err)

		var phaseErr migrate.PhaseFailureError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, 2, phaseErr.Index.Revision)
		assert.False(t, phaseErr.IsRevert)

		pqErr := &pq.Error{}
		require.ErrorAs(t, err, &pqErr)
		assert.Equal(t, testutils.CheckViolationErrorCode, pqErr.Code.Name())

		// the failed attempt left no audit row; the NOT VALID phase is the
		// latest finished one
		latest, err := mig.State().LatestAudit(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.True(t, latest.Finished())
		assert.Equal(t, 2, latest.Index.Revision)
		assert.Equal(t, 0, latest.Index.Phase)

		// fix the data and resume
		_, err = conn.Exec("DELETE FROM products WHERE price <= 0")
		require.NoError(t, err)
		require.NoError(t, mig.Up(ctx))

		// the constraint is now validated and enforced
		_, err = conn.Exec("INSERT INTO products VALUES (2, -1)")
		require.ErrorAs(t, err, &pqErr)
		assert.Equal(t, testutils.CheckViolationErrorCode, pqErr.Code.Name())
	})
}

func TestUpResumesCrashedIndexBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, `message: create users with index
pre_deploy:
  - run_ddl:
      up: "CREATE TABLE users(u_id int, email text);"
      down: "DROP TABLE users;"
post_deploy:
  - create_index:
      name: users_email_idx
      table: users
      expr: email
`, "CREATE TABLE users(u_id int, email text);\n")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()
		st := mig.State()
		rev := repo.Revision(1)

		// reconstruct the state a crash between the index phase's audit
		// brackets leaves behind: the DDL phase finished, the index phase
		// started but never ran
		_, err := conn.Exec("CREATE TABLE users(u_id int, email text)")
		require.NoError(t, err)

		audit, err := st.StartPhase(ctx, conn, rev.Index(true, 0, 0), false)
		require.NoError(t, err)
		_, err = st.EndPhase(ctx, conn, audit)
		require.NoError(t, err)

		_, err = st.UpsertRevision(ctx, state.Revision{
			Number:        1,
			MigrationHash: rev.MigrationHash,
			SchemaHash:    rev.SchemaHash,
		})
		require.NoError(t, err)
		require.NoError(t, st.CreateShimSchema(ctx, 1))

		_, err = st.StartPhase(ctx, conn, rev.Index(false, 0, 0), false)
		require.NoError(t, err)

		require.NoError(t, mig.Up(ctx))

		assert.True(t, indexExists(t, conn, "users_email_idx"))
		assert.Equal(t, 2, auditCount(t, conn))
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(1)))

		latest, err := st.LatestAudit(ctx)
		require.NoError(t, err)
		require.True(t, latest.Finished())
		assert.False(t, latest.Index.PreDeploy)
	})
}

func TestUpRejectsUnfinishedTransactionalPhase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, createUsersMigration, "s1")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		_, err := mig.State().StartPhase(ctx, conn, repo.Revision(1).Index(true, 0, 0), false)
		require.NoError(t, err)

		err = mig.Up(ctx)
		require.Error(t, err)
		assert.ErrorContains(t, err, "unfinished transactional phase")
	})
}

func TestUpDetectsHashMismatchInAuditLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, createUsersMigration, "s1")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		// same position, different hashes: the files changed under an
		// in-flight phase
		_, err := mig.State().StartPhase(ctx, conn, changes.PhaseIndex{
			Revision:      1,
			MigrationHash: []byte{0x01},
			SchemaHash:    []byte{0x02},
			PreDeploy:     true,
		}, false)
		require.NoError(t, err)

		err = mig.Up(ctx)
		var conflictErr state.RevisionConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, 1, conflictErr.Revision)
	})
}

func TestUpRejectsUnknownAuditedPhase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, createUsersMigration, "s1")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		_, err := mig.State().StartPhase(ctx, conn, changes.PhaseIndex{
			Revision:      7,
			MigrationHash: []byte{0x01},
			SchemaHash:    []byte{0x02},
			PreDeploy:     true,
		}, false)
		require.NoError(t, err)

		err = mig.Up(ctx)
		var unknownErr migrate.UnknownPhaseError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, 7, unknownErr.Index.Revision)
	})
}

func TestUpDetectsRevisionConflict(t *testing.T) {
	t.Parallel()

	repo := twoRevisionRepo(t)
	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, _ *sql.DB) {
		ctx := context.Background()

		// the database believes revision 1 had different file contents
		_, err := mig.State().UpsertRevision(ctx, state.Revision{
			Number:        1,
			MigrationHash: []byte{0x01},
			SchemaHash:    []byte{0x02},
		})
		require.NoError(t, err)

		err = mig.Up(ctx)
		var conflictErr state.RevisionConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, 1, conflictErr.Revision)
	})
}

func TestDownRevertsToTarget(t *testing.T) {
	t.Parallel()

	repo := twoRevisionRepo(t)
	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		require.NoError(t, mig.Up(ctx))

		require.NoError(t, mig.Down(ctx, 1))
		assert.Equal(t, []string{"u_id", "email"}, columnNames(t, conn, "public", "users"))

		revs, err := mig.State().Revisions(ctx)
		require.NoError(t, err)
		require.Len(t, revs, 1)

		latest, err := mig.State().LatestAudit(ctx)
		require.NoError(t, err)
		assert.True(t, latest.IsRevert)
		assert.True(t, latest.Finished())

		require.NoError(t, mig.Down(ctx, 0))
		assert.Empty(t, columnNames(t, conn, "public", "users"))

		revs, err = mig.State().Revisions(ctx)
		require.NoError(t, err)
		assert.Empty(t, revs)

		// everything already reverted: a second downgrade is a no-op
		require.NoError(t, mig.Down(ctx, 0))

		assert.Error(t, mig.Down(ctx, -1))

		// the tombstoned revision rows do not block a re-upgrade
		require.NoError(t, mig.Up(ctx))
		assert.Equal(t, []string{"u_id", "email", "name"}, columnNames(t, conn, "public", "users"))

		revs, err = mig.State().Revisions(ctx)
		require.NoError(t, err)
		assert.Len(t, revs, 2)
	})
}

func TestDownWithEmptyAuditLog(t *testing.T) {
	t.Parallel()

	repo := twoRevisionRepo(t)
	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, _ *sql.DB) {
		assert.ErrorIs(t, mig.Down(context.Background(), 0), migrate.ErrNothingToRevert)
	})
}

func TestDownRefusesUnfinishedPhase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, createUsersMigration, "s1")
	repo := loadRepo(t, dir)

	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, conn *sql.DB) {
		ctx := context.Background()

		require.NoError(t, mig.Up(ctx))

		_, err := mig.State().StartPhase(ctx, conn, repo.Revision(1).Index(true, 0, 0), true)
		require.NoError(t, err)

		err = mig.Down(ctx, 0)
		var unfinishedErr migrate.UnfinishedPhaseError
		require.ErrorAs(t, err, &unfinishedErr)
	})
}

func TestRenameLifecycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRevision(t, dir, 1, createUsersMigration, "CREATE TABLE users(u_id int, email text);\n")
	writeRevision(t, dir, 2, `message: start renaming u_id
pre_deploy:
  - begin_rename:
      table: users
      renames:
        u_id: user_id
`, "CREATE TABLE users(u_id int, email text);\n")

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()

		st1, err := state.New(ctx, connStr, state.DefaultSchema)
		require.NoError(t, err)
		require.NoError(t, st1.Init(ctx))

		mig1, err := migrate.New(ctx, connStr, st1, loadRepo(t, dir))
		require.NoError(t, err)
		defer mig1.Close()

		require.NoError(t, mig1.Up(ctx))

		// between the two rename revisions both names are live: the physical
		// column is untouched and the shim view publishes the new name
		assert.Equal(t, []string{"u_id", "email"}, columnNames(t, conn, "public", "users"))
		require.True(t, schemaExists(t, conn, state.ShimSchemaName(2)))
		assert.Equal(t, []string{"user_id", "email"}, columnNames(t, conn, state.ShimSchemaName(2), "users"))
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(1)))

		// the renamed column resolves through the view
		var n int
		err = conn.QueryRow(fmt.Sprintf("SELECT count(user_id) FROM %s.users",
			pq.QuoteIdentifier(state.ShimSchemaName(2)))).Scan(&n)
		require.NoError(t, err)
		assert.Zero(t, n)

		// the next release ships the finish_rename
		writeRevision(t, dir, 3, `message: finish renaming u_id
pre_deploy:
  - finish_rename:
      table: users
      renames:
        u_id: user_id
`, "CREATE TABLE users(user_id int, email text);\n")

		st2, err := state.New(ctx, connStr, state.DefaultSchema)
		require.NoError(t, err)

		mig2, err := migrate.New(ctx, connStr, st2, loadRepo(t, dir))
		require.NoError(t, err)
		defer mig2.Close()

		require.NoError(t, mig2.Up(ctx))

		assert.Equal(t, []string{"user_id", "email"}, columnNames(t, conn, "public", "users"))
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(2)))
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(3)))

		// reverting the finish restores the in-between state exactly
		require.NoError(t, mig2.Down(ctx, 2))
		assert.Equal(t, []string{"u_id", "email"}, columnNames(t, conn, "public", "users"))
		require.True(t, schemaExists(t, conn, state.ShimSchemaName(2)))
		assert.Equal(t, []string{"user_id", "email"}, columnNames(t, conn, state.ShimSchemaName(2), "users"))

		revs, err := st2.Revisions(ctx)
		require.NoError(t, err)
		assert.Len(t, revs, 2)

		require.NoError(t, mig2.Up(ctx))
		assert.Equal(t, []string{"user_id", "email"}, columnNames(t, conn, "public", "users"))
		assert.False(t, schemaExists(t, conn, state.ShimSchemaName(2)))
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	repo := twoRevisionRepo(t)
	testutils.WithMigratorAndConnectionToContainer(t, repo, func(mig *migrate.Migrate, _ *sql.DB) {
		ctx := context.Background()

		status, err := mig.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.Initialized)
		assert.Equal(t, 2, status.DiskRevisions)
		assert.Empty(t, status.Applied)
		assert.Nil(t, status.LatestAudit)

		require.NoError(t, mig.Up(ctx))

		status, err = mig.Status(ctx)
		require.NoError(t, err)
		require.Len(t, status.Applied, 2)
		assert.Equal(t, 1, status.Applied[0].Number)
		assert.Equal(t, 2, status.Applied[1].Number)
		require.NotNil(t, status.LatestAudit)
		assert.True(t, status.LatestAudit.Finished())
	})
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	migDir := filepath.Join(root, "migrations")
	require.NoError(t, os.Mkdir(migDir, 0o755))

	declared := filepath.Join(root, "declared.sql")
	require.NoError(t, os.WriteFile(declared,
		[]byte("CREATE TABLE users (u_id integer, email text);\n"), 0o644))

	repo := &revisions.Repo{
		Config: &revisions.RepoConfig{
			SchemaDumpCommand: fmt.Sprintf("cat '%s'", declared),
			MigrationsDir:     "migrations",
			IncantationPath:   "migrations/incantation.sql",
		},
		Dir:       migDir,
		ConfigDir: root,
	}

	testutils.WithConnectionToContainer(t, func(_ *sql.DB, connStr string) {
		ctx := context.Background()

		st, err := state.New(ctx, connStr, state.DefaultSchema)
		require.NoError(t, err)
		require.NoError(t, st.Init(ctx))

		mig, err := migrate.New(ctx, connStr, st, repo)
		require.NoError(t, err)
		defer mig.Close()

		require.NoError(t, mig.Generate(ctx, "create users"))

		revs, err := revisions.LoadDir(migDir)
		require.NoError(t, err)
		require.Len(t, revs, 1)
		assert.Equal(t, "create users", revs[0].Migration.Message)

		require.Len(t, revs[0].Migration.PreDeploy, 1)
		ddl, ok := revs[0].Migration.PreDeploy[0].(*changes.RunDDL)
		require.True(t, ok)
		assert.Contains(t, ddl.Up, `CREATE TABLE "public"."users"`)
		assert.Contains(t, ddl.Down, "DROP TABLE")

		incantation, err := os.ReadFile(filepath.Join(migDir, "incantation.sql"))
		require.NoError(t, err)
		assert.Contains(t, string(incantation), state.ShimSchemaName(1))
		assert.Contains(t, string(incantation), "pg_backend_pid()")
	})
}

// pristineCatalog snapshots the catalog a fresh database has after loading
// schemaSQL directly, bypassing the migration engine.
func pristineCatalog(t *testing.T, schemaSQL string) *diff.Catalog {
	t.Helper()

	var catalog *diff.Catalog
	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		if schemaSQL != "" {
			_, err := conn.Exec(schemaSQL)
			require.NoError(t, err)
		}
		var err error
		catalog, err = diff.ReadCatalog(context.Background(), conn)
		require.NoError(t, err)
	})
	return catalog
}

func TestGeneratedRevisionsReproduceDeclaredSchema(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	migDir := filepath.Join(root, "migrations")
	require.NoError(t, os.Mkdir(migDir, 0o755))
	declared := filepath.Join(root, "declared.sql")

	const schemaV1 = "CREATE TABLE users (u_id integer, email text);\n"
	const schemaV2 = "CREATE TABLE users (u_id integer, email text, name text);\n" +
		"CREATE INDEX users_email_idx ON users (email);\n"

	config := &revisions.RepoConfig{
		SchemaDumpCommand: fmt.Sprintf("cat '%s'", declared),
		MigrationsDir:     "migrations",
		IncantationPath:   "migrations/incantation.sql",
	}
	reload := func() *revisions.Repo {
		revs, err := revisions.LoadDir(migDir)
		require.NoError(t, err)
		return &revisions.Repo{Revisions: revs, Config: config, Dir: migDir, ConfigDir: root}
	}

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()

		newMigrator := func() *migrate.Migrate {
			st, err := state.New(ctx, connStr, state.DefaultSchema)
			require.NoError(t, err)
			mig, err := migrate.New(ctx, connStr, st, reload())
			require.NoError(t, err)
			t.Cleanup(func() { mig.Close() })
			return mig
		}
		migratedCatalog := func() *diff.Catalog {
			catalog, err := diff.ReadCatalog(ctx, conn, state.DefaultSchema)
			require.NoError(t, err)
			return catalog
		}

		require.NoError(t, os.WriteFile(declared, []byte(schemaV1), 0o644))
		mig := newMigrator()
		require.NoError(t, mig.Init(ctx))
		require.NoError(t, mig.Generate(ctx, "create users"))

		require.NoError(t, os.WriteFile(declared, []byte(schemaV2), 0o644))
		require.NoError(t, newMigrator().Generate(ctx, "add name and index"))

		// applying the generated revisions yields exactly the declared schema
		mig = newMigrator()
		require.NoError(t, mig.Up(ctx))
		assert.Equal(t, pristineCatalog(t, schemaV2), migratedCatalog())

		// reverting a revision yields exactly the previously declared schema
		require.NoError(t, mig.Down(ctx, 1))
		assert.Equal(t, pristineCatalog(t, schemaV1), migratedCatalog())

		require.NoError(t, mig.Down(ctx, 0))
		assert.Equal(t, pristineCatalog(t, ""), migratedCatalog())
	})
}
