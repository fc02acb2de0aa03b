// Package schema defines the explicit response schema description and the
// validator that turns a model's final payload into a validated structured
// response. The schema is a plain list of named, typed fields rather than a
// reflected Go type, so it stays decoupled from any particular model SDK's
// response-format conventions.
package schema

// FieldType enumerates the JSON types a response field may declare.
type FieldType string

const (
	// TypeString declares a JSON string field.
	TypeString FieldType = "string"
	// TypeNumber declares a JSON number field.
	TypeNumber FieldType = "number"
	// TypeInteger declares a JSON integer field.
	TypeInteger FieldType = "integer"
	// TypeBoolean declares a JSON boolean field.
	TypeBoolean FieldType = "boolean"
	// TypeObject declares a JSON object field with free-form members.
	TypeObject FieldType = "object"
	// TypeArray declares a JSON array field.
	TypeArray FieldType = "array"
)

// Field declares a single named response field.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// ResponseSchema is the declared shape of the terminal model output for a
// turn. The payload must map onto exactly these fields with correct types or
// the turn is not yet terminal.
type ResponseSchema struct {
	Fields []Field
}

// New builds a ResponseSchema from the given fields.
func New(fields ...Field) ResponseSchema {
	return ResponseSchema{Fields: fields}
}

// IsZero reports whether no fields were declared.
func (s ResponseSchema) IsZero() bool { return len(s.Fields) == 0 }

// RequiredFields returns the names of all required fields in declaration order.
func (s ResponseSchema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// JSONSchema renders the declaration as a JSON Schema object suitable both
// for provider structured-output modes and for validation. Unknown members
// are rejected so a payload cannot smuggle fields past the declaration.
func (s ResponseSchema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[f.Name] = prop
	}

	js := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if required := s.RequiredFields(); len(required) > 0 {
		js["required"] = required
	}
	return js
}

// Describe renders a short human-readable field listing used when prompting
// the model for its final structured answer.
func (s ResponseSchema) Describe() string {
	out := ""
	for _, f := range s.Fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		out += "- " + f.Name + " (" + string(f.Type) + ", " + req + ")"
		if f.Description != "" {
			out += ": " + f.Description
		}
		out += "\n"
	}
	return out
}
