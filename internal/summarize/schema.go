package summarize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildSummarySchema returns a JSON-Schema (draft 2020-12 subset) as a generic
// map. We pass it to the model as a structured output constraint and also use
// it locally to validate the reply.
func BuildSummarySchema(maxKeyPoints int) map[string]any {
	if maxKeyPoints <= 0 {
		maxKeyPoints = 10
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":    map[string]any{"type": "string", "minLength": 1},
			"abstract": map[string]any{"type": "string", "minLength": 1},
			"key_points": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"minItems": 1,
				"maxItems": maxKeyPoints,
			},
			"language":   map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"title", "abstract", "key_points"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
