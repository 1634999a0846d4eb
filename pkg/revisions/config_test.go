// SPDX-License-Identifier: Apache-2.0

package revisions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain words",
			input: "pg_dump --schema-only app",
			want:  []string{"pg_dump", "--schema-only", "app"},
		},
		{
			name:  "double quotes",
			input: `pg_dump --dbname "my app"`,
			want:  []string{"pg_dump", "--dbname", "my app"},
		},
		{
			name:  "single quotes keep backslashes",
			input: `echo 'a\b c'`,
			want:  []string{"echo", `a\b c`},
		},
		{
			name:  "escaped space",
			input: `echo a\ b`,
			want:  []string{"echo", "a b"},
		},
		{
			name:  "empty quoted word",
			input: `cmd ""`,
			want:  []string{"cmd", ""},
		},
		{
			name:  "collapses whitespace runs",
			input: "  a \t b  ",
			want:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := shellSplit(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShellSplitErrors(t *testing.T) {
	t.Parallel()

	_, err := shellSplit(`pg_dump "unterminated`)
	assert.Error(t, err)

	_, err = shellSplit(`pg_dump trailing\`)
	assert.Error(t, err)
}

func TestDumpCommand(t *testing.T) {
	t.Parallel()

	cfg := &RepoConfig{SchemaDumpCommand: "pg_dump --schema-only app"}
	argv, err := cfg.DumpCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"pg_dump", "--schema-only", "app"}, argv)

	cfg = &RepoConfig{}
	_, err = cfg.DumpCommand()
	assert.Error(t, err)
}
