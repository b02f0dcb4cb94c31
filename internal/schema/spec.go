package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Property is one entry of a flat spec.
type Property struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Spec is the minimal field description accepted from callers:
//
//	{"properties": {"name": {"type": "string", "description": "...", "required": true}}}
//
// A property is required only when "required" is explicitly true; every
// other property is optional.
type Spec struct {
	Title      string              `json:"title,omitempty"`
	Properties map[string]Property `json:"properties"`
}

// ParseSpec decodes a flat spec and builds its Document.
func ParseSpec(data []byte) (*Document, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: parse spec: %w", err)
	}
	return FromSpec(s)
}

// FromSpec builds a Document from a flat spec. Unknown or missing types map
// to string; fields are ordered by name.
func FromSpec(s Spec) (*Document, error) {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		p := s.Properties[name]
		fields = append(fields, Field{
			Name:        name,
			Kind:        ParseKind(p.Type),
			Description: p.Description,
			Required:    p.Required,
			Enum:        p.Enum,
		})
	}
	return New(s.Title, fields)
}

// Spec converts d back to flat-spec form.
func (d *Document) Spec() Spec {
	s := Spec{Title: d.Title, Properties: make(map[string]Property, len(d.Fields))}
	for _, f := range d.Fields {
		s.Properties[f.Name] = Property{
			Type:        string(f.Kind),
			Description: f.Description,
			Required:    f.Required,
			Enum:        append([]string(nil), f.Enum...),
		}
	}
	return s
}
