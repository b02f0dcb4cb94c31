package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// JSONSchema is the machine-checkable serialization of a Document that is
// embedded in the model instructions.
type JSONSchema struct {
	Title                string                        `json:"title,omitempty"`
	Type                 string                        `json:"type"`
	Properties           map[string]JSONSchemaProperty `json:"properties"`
	Required             []string                      `json:"required,omitempty"`
	AdditionalProperties bool                          `json:"additionalProperties"`
}

// JSONSchemaProperty describes one property of a JSONSchema.
type JSONSchemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// JSONSchema returns the canonical JSON Schema for d.
func (d *Document) JSONSchema() *JSONSchema {
	js := &JSONSchema{
		Title:                d.Title,
		Type:                 "object",
		Properties:           make(map[string]JSONSchemaProperty, len(d.Fields)),
		Required:             d.Required(),
		AdditionalProperties: !d.RejectExtra,
	}
	for _, f := range d.Fields {
		js.Properties[f.Name] = JSONSchemaProperty{
			Type:        string(f.Kind),
			Description: f.Description,
			Enum:        f.Enum,
		}
	}
	return js
}

// MarshalJSONSchema returns the indented JSON encoding of d.JSONSchema().
func (d *Document) MarshalJSONSchema() ([]byte, error) {
	b, err := json.MarshalIndent(d.JSONSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("schema: marshal json schema: %w", err)
	}
	return b, nil
}

// rawSchema accepts the loosely typed JSON Schema objects callers hand in.
// "type" may be a string or a list such as ["string", "null"].
type rawSchema struct {
	Title                string                 `json:"title"`
	Properties           map[string]rawProperty `json:"properties"`
	Required             []string               `json:"required"`
	AdditionalProperties *bool                  `json:"additionalProperties"`
}

type rawProperty struct {
	Type        any      `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum"`
}

// typeName extracts the first non-null type name.
func (p rawProperty) typeName() string {
	switch t := p.Type.(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

// FromJSONSchema builds a Document from a JSON Schema object. A field is
// required when it appears in the "required" list. Nested properties and
// array item types are not inspected.
func FromJSONSchema(data []byte) (*Document, error) {
	var raw rawSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("schema: parse json schema: %w", err)
	}

	required := make(map[string]bool, len(raw.Required))
	for _, name := range raw.Required {
		if _, ok := raw.Properties[name]; !ok {
			return nil, &UnsupportedSchemaError{Field: name, Reason: "listed as required but not declared in properties"}
		}
		required[name] = true
	}

	names := make([]string, 0, len(raw.Properties))
	for name := range raw.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		p := raw.Properties[name]
		fields = append(fields, Field{
			Name:        name,
			Kind:        ParseKind(p.typeName()),
			Description: p.Description,
			Required:    required[name],
			Enum:        p.Enum,
		})
	}
	doc, err := New(raw.Title, fields)
	if err != nil {
		return nil, err
	}
	if raw.AdditionalProperties != nil && !*raw.AdditionalProperties {
		doc.RejectExtra = true
	}
	return doc, nil
}
