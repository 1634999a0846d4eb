// SPDX-License-Identifier: Apache-2.0

package revisions

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"sigs.k8s.io/yaml"
)

// Repo is the loaded revision directory: a contiguous range of revisions
// 1..N, plus the project configuration.
type Repo struct {
	Config    *RepoConfig
	Revisions []*Revision

	// Dir is the resolved migrations directory; generated revision files are
	// written here.
	Dir string

	// ConfigDir anchors the config's relative paths, the incantation path in
	// particular.
	ConfigDir string
}

var revisionFilePattern = regexp.MustCompile(`^(\d+)-(migration\.yml|schema\.sql)$`)

// Load reads the repo config and every revision under its migrations
// directory. Revisions must be contiguous from 1 and each needs both a
// migration and a schema file.
func Load(configPath string) (*Repo, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	dir := cfg.MigrationsDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(configPath), dir)
	}

	revs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	return &Repo{
		Config:    cfg,
		Revisions: revs,
		Dir:       dir,
		ConfigDir: filepath.Dir(configPath),
	}, nil
}

// IncantationPath resolves the configured incantation file location.
func (r *Repo) IncantationPath() string {
	p := r.Config.IncantationPath
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.ConfigDir, p)
	}
	return p
}

// LoadDir loads the revisions of a migrations directory.
func LoadDir(dir string) ([]*Revision, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read migrations directory %q: %w", dir, err)
	}

	numbers := make(map[int]struct{})
	for _, e := range entries {
		m := revisionFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		numbers[n] = struct{}{}
	}

	revs := make([]*Revision, 0, len(numbers))
	for n := 1; n <= len(numbers); n++ {
		if _, ok := numbers[n]; !ok {
			return nil, MissingRevisionError{GapAt: n}
		}

		rev, err := loadRevision(dir, n)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}

	return revs, nil
}

func loadRevision(dir string, number int) (*Revision, error) {
	migrationFile := fmt.Sprintf("%d-migration.yml", number)
	schemaFile := fmt.Sprintf("%d-schema.sql", number)

	migrationText, err := os.ReadFile(filepath.Join(dir, migrationFile))
	if err != nil {
		return nil, MalformedRevisionError{Filename: migrationFile, Cause: err}
	}
	schemaText, err := os.ReadFile(filepath.Join(dir, schemaFile))
	if err != nil {
		return nil, MalformedRevisionError{Filename: schemaFile, Cause: err}
	}

	if err := validateMigrationYAML(migrationText); err != nil {
		return nil, MalformedRevisionError{Filename: migrationFile, Cause: err}
	}

	var migration Migration
	if err := yaml.Unmarshal(migrationText, &migration); err != nil {
		return nil, MalformedRevisionError{Filename: migrationFile, Cause: err}
	}
	if err := migration.PreDeploy.Validate(); err != nil {
		return nil, MalformedRevisionError{Filename: migrationFile, Cause: err}
	}
	if err := migration.PostDeploy.Validate(); err != nil {
		return nil, MalformedRevisionError{Filename: migrationFile, Cause: err}
	}

	return newRevision(number, migrationText, schemaText, &migration), nil
}

// Revision returns revision n, or nil when it does not exist.
func (r *Repo) Revision(n int) *Revision {
	if n < 1 || n > len(r.Revisions) {
		return nil
	}
	return r.Revisions[n-1]
}

// NextNumber is the number the next generated revision will get.
func (r *Repo) NextNumber() int {
	return len(r.Revisions) + 1
}
