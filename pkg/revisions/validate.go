// SPDX-License-Identifier: Apache-2.0

package revisions

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"
)

//go:embed schema.json
var migrationSchemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(migrationSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unable to parse embedded migration schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
})

// validateMigrationYAML checks a migration file against the embedded JSON
// schema before the typed unmarshalling gets a chance to silently ignore
// unknown keys.
func validateMigrationYAML(data []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return err
	}

	return sch.Validate(doc)
}
