package manifest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// descriptionSchema is the JSON Schema every manifest envelope must
// satisfy before it is unmarshalled into a Description — grounded on
// the teacher's own firewall.PolicyFirewall, which compiles and caches
// a jsonschema.Schema per tool before ever trusting its params.
const descriptionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["engine_abi", "automata"],
  "properties": {
    "engine_abi": {"type": "string"},
    "signature": {"type": "string"},
    "automata": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "name", "events"],
        "properties": {
          "id": {"type": "integer"},
          "name": {"type": "string", "minLength": 1},
          "is_deterministic": {"type": "boolean"},
          "is_thread_local": {"type": "boolean"},
          "is_linked": {"type": "boolean"},
          "events": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["id", "name"],
              "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string", "minLength": 1},
                "successors": {"type": "array", "items": {"type": "integer"}},
                "match_data_size": {"type": "integer", "minimum": 0},
                "is_deterministic": {"type": "boolean"},
                "is_assertion": {"type": "boolean"},
                "is_or": {"type": "boolean"},
                "is_optional": {"type": "boolean"},
                "is_initial": {"type": "boolean"},
                "is_final": {"type": "boolean"},
                "is_before_assertion": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce    sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr     error
)

const schemaResourceURL = "https://thintesla.internal/manifest/description.schema.json"

func compileDescriptionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaResourceURL, strings.NewReader(descriptionSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("manifest: load schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaResourceURL)
	})
	return compiledSchema, schemaErr
}

// validateEnvelope checks raw JSON against the description schema
// before it is ever unmarshalled into a Description, matching
// firewall.PolicyFirewall.CallTool's "validate before trust" ordering.
func validateEnvelope(doc any) error {
	schema, err := compileDescriptionSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("manifest: schema validation failed: %w", err)
	}
	return nil
}
