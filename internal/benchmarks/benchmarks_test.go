// SPDX-License-Identifier: Apache-2.0

// Package benchmarks measures phase throughput of the migration engine
// against a real postgres container.
package benchmarks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgrev/pgrev/internal/testutils"
	"github.com/pgrev/pgrev/pkg/migrate"
	"github.com/pgrev/pgrev/pkg/revisions"
)

const unitPhasesPerSecond = "phases/s"

var revisionCounts = []int{10, 50, 100}

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

// buildRepo writes n single-phase revisions, each creating its own table.
func buildRepo(b *testing.B, n int) *revisions.Repo {
	b.Helper()
	dir := b.TempDir()

	for i := 1; i <= n; i++ {
		migration := fmt.Sprintf(`message: create t%[1]d
pre_deploy:
  - run_ddl:
      up: "CREATE TABLE t%[1]d(id int);"
      down: "DROP TABLE t%[1]d;"
`, i)
		schema := fmt.Sprintf("CREATE TABLE t%d(id int);\n", i)
		require.NoError(b, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d-migration.yml", i)), []byte(migration), 0o644))
		require.NoError(b, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d-schema.sql", i)), []byte(schema), 0o644))
	}

	revs, err := revisions.LoadDir(dir)
	require.NoError(b, err)
	return &revisions.Repo{Revisions: revs, Dir: dir}
}

func BenchmarkUp(b *testing.B) {
	ctx := context.Background()

	for _, n := range revisionCounts {
		b.Run(strconv.Itoa(n), func(b *testing.B) {
			repo := buildRepo(b, n)
			testutils.WithMigratorAndConnectionToContainer(b, repo, func(mig *migrate.Migrate, _ *sql.DB) {
				b.ResetTimer()

				b.StartTimer()
				require.NoError(b, mig.Up(ctx))
				b.StopTimer()

				b.Logf("Applied %d revisions in %s", n, b.Elapsed())
				phasesPerSecond := float64(n) / b.Elapsed().Seconds()
				b.ReportMetric(phasesPerSecond, unitPhasesPerSecond)
			})
		})
	}
}

func BenchmarkDown(b *testing.B) {
	ctx := context.Background()

	for _, n := range revisionCounts {
		b.Run(strconv.Itoa(n), func(b *testing.B) {
			repo := buildRepo(b, n)
			testutils.WithMigratorAndConnectionToContainer(b, repo, func(mig *migrate.Migrate, _ *sql.DB) {
				require.NoError(b, mig.Up(ctx))
				b.ResetTimer()

				b.StartTimer()
				require.NoError(b, mig.Down(ctx, 0))
				b.StopTimer()

				b.Logf("Reverted %d revisions in %s", n, b.Elapsed())
				phasesPerSecond := float64(n) / b.Elapsed().Seconds()
				b.ReportMetric(phasesPerSecond, unitPhasesPerSecond)
			})
		})
	}
}
