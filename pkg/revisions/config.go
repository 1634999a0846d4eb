// SPDX-License-Identifier: Apache-2.0

package revisions

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"
)

// RepoConfig is the project-level configuration file next to the migrations
// directory.
type RepoConfig struct {
	// SchemaDumpCommand is the command producing the canonical schema SQL on
	// stdout, e.g. "pg_dump --schema-only --no-owner mydb". Split with shell
	// quoting rules.
	SchemaDumpCommand string `json:"schema_dump_command"`

	MigrationsDir string `json:"migrations_dir"`

	CrashOnIncompatibleVersion *bool `json:"crash_on_incompatible_version,omitempty"`

	IncantationPath string `json:"incantation_path"`
}

// LoadConfig reads and defaults a RepoConfig.
func LoadConfig(path string) (*RepoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config %q: %w", path, err)
	}

	var cfg RepoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config %q: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *RepoConfig) applyDefaults() {
	if c.MigrationsDir == "" {
		c.MigrationsDir = "migrations"
	}
	if c.IncantationPath == "" {
		c.IncantationPath = "migrations/incantation.sql"
	}
	if c.CrashOnIncompatibleVersion == nil {
		t := true
		c.CrashOnIncompatibleVersion = &t
	}
}

// DumpCommand shell-splits SchemaDumpCommand into argv form.
func (c *RepoConfig) DumpCommand() ([]string, error) {
	argv, err := shellSplit(c.SchemaDumpCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid schema_dump_command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("schema_dump_command is empty")
	}
	return argv, nil
}

// shellSplit splits a command line into words, honouring single quotes,
// double quotes and backslash escapes.
func shellSplit(s string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false

		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true

		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}

		case r == '\'' || r == '"':
			quote = r
			inWord = true

		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}

		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
