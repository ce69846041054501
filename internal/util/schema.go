package util

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports every schema violation of one argument object.
type ValidationError struct {
	Violations []string `json:"violations"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// Schema is a compiled JSON schema used to validate tool arguments.
type Schema struct {
	raw      map[string]any
	compiled *gojsonschema.Schema
}

// CompileSchema compiles a JSON schema expressed as a Go map.
func CompileSchema(schema map[string]any) (*Schema, error) {
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Schema{raw: schema, compiled: compiled}, nil
}

// Raw returns the schema map the Schema was compiled from.
func (s *Schema) Raw() map[string]any { return s.raw }

// Validate checks params against the compiled schema. A nil map is treated
// as an empty object.
func (s *Schema) Validate(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.Violations = append(verr.Violations, re.String())
	}

	return verr
}
