// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// QueryRequestSchema describes the body of POST /api/v1/query.
var QueryRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"query": map[string]interface{}{
			"type":      "string",
			"maxLength": 2000,
		},
		"preserve_history": map[string]interface{}{
			"type": "boolean",
		},
	},
	"required":             []string{"query"},
	"additionalProperties": false,
}

// BatchRequestSchema describes the body of POST /api/v1/query/batch. Blank
// items are allowed through here; the orchestrator captures them as failed
// envelopes so one bad item cannot reject the whole batch up front.
var BatchRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"queries": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":      "string",
				"maxLength": 2000,
			},
		},
	},
	"required":             []string{"queries"},
	"additionalProperties": false,
}

// ValidateRequest checks a decoded JSON document against a schema and
// returns a single descriptive error listing every violation.
func ValidateRequest(document interface{}, schema map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
