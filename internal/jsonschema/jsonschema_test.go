// SPDX-License-Identifier: Apache-2.0

package jsonschema

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

const (
	schemaPath  = "../../pkg/revisions/schema.json"
	testDataDir = "./testdata"
)

// Each testdata archive holds a migration document and the expected
// validation outcome.
func TestMigrationSchemaValidation(t *testing.T) {
	t.Parallel()

	c := jsonschema.NewCompiler()
	sch, err := c.Compile(schemaPath)
	require.NoError(t, err)

	files, err := os.ReadDir(testDataDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(file.Name(), func(t *testing.T) {
			ac, err := txtar.ParseFile(filepath.Join(testDataDir, file.Name()))
			require.NoError(t, err)

			require.Len(t, ac.Files, 2)

			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(ac.Files[0].Data))
			require.NoError(t, err)

			shouldValidate, err := strconv.ParseBool(strings.TrimSpace(string(ac.Files[1].Data)))
			require.NoError(t, err)

			err = sch.Validate(doc)
			if shouldValidate {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err, "expected %q to be invalid", ac.Files[0].Name)
			}
		})
	}
}
