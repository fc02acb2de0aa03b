package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ParsedResponse is a validated structured response: every declared required
// field is present and every present field matches its declared type.
type ParsedResponse map[string]any

// String returns the string value of a field, or "" when absent or non-string.
func (p ParsedResponse) String(field string) string {
	if v, ok := p[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Object returns the object value of a field, or nil when absent or non-object.
func (p ParsedResponse) Object(field string) map[string]any {
	if v, ok := p[field]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// Violation describes why a payload failed schema validation. It is fed back
// to the model during repair attempts, so problem descriptions should be
// concrete and self-contained.
type Violation struct {
	Problems []string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("response schema violation: %s", strings.Join(v.Problems, "; "))
}

// Validator checks raw model payloads against a compiled ResponseSchema.
// A Validator is immutable after construction and safe for concurrent use.
type Validator struct {
	schema   ResponseSchema
	compiled *gojsonschema.Schema
}

// NewValidator compiles the schema declaration. Compilation failures are
// configuration errors surfaced at startup.
func NewValidator(s ResponseSchema) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &Validator{schema: s, compiled: compiled}, nil
}

// Schema returns the declaration this validator enforces.
func (v *Validator) Schema() ResponseSchema { return v.schema }

// Validate parses raw as a JSON object and checks it against the schema.
// On success the parsed response is returned; on mismatch the error is a
// *Violation listing every problem found.
func (v *Validator) Validate(raw []byte) (ParsedResponse, error) {
	payload := stripFences(raw)

	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &Violation{Problems: []string{fmt.Sprintf("payload is not a JSON object: %v", err)}}
	}

	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(parsed))
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &Violation{Problems: problems}
	}

	return ParsedResponse(parsed), nil
}

// stripFences removes a surrounding markdown code fence if present. Models
// occasionally wrap JSON payloads even when asked not to.
func stripFences(raw []byte) []byte {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "```") {
		return raw
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return []byte(strings.TrimSpace(trimmed))
}
