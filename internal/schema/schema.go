// Package schema defines the structured-output schema document and the
// validator derived from it. Documents can be built from a flat property
// spec, a JSON Schema object, a Go struct type, or inferred from examples.
package schema

import "fmt"

// Kind is the primitive type of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// kinds is the closed set of recognized primitive kinds.
var kinds = map[Kind]bool{
	KindString:  true,
	KindInteger: true,
	KindNumber:  true,
	KindBoolean: true,
	KindArray:   true,
	KindObject:  true,
}

// Valid reports whether k is one of the six recognized kinds.
func (k Kind) Valid() bool {
	return kinds[k]
}

// ParseKind maps a type name to a Kind. Empty or unrecognized names default
// to KindString.
func ParseKind(name string) Kind {
	k := Kind(name)
	if !k.Valid() {
		return KindString
	}
	return k
}

// Field describes one property of a structured value.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	// Required fields have no default. Optional fields default to absent.
	Required bool
	// Enum, when non-empty, restricts a string field to the listed values.
	Enum []string
}

// Document is the description of a structured value's shape. A Document is
// not modified after New returns it.
type Document struct {
	Title  string
	Fields []Field
	// RejectExtra makes the validator fail on properties that are not
	// declared in Fields. By default they are dropped.
	RejectExtra bool
}

// DefaultTitle is used when a document is built without a title.
const DefaultTitle = "StructsureModel"

// New builds a Document, checking that field names are unique and kinds are
// recognized.
func New(title string, fields []Field) (*Document, error) {
	if title == "" {
		title = DefaultTitle
	}
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		f.Enum = append([]string(nil), f.Enum...)
		out = append(out, f)
	}
	d := &Document{Title: title, Fields: out}
	if err := d.Check(); err != nil {
		return nil, err
	}
	return d, nil
}

// Check reports the first field of d that no validator can serve. Documents
// built by New always pass; literal documents may not.
func (d *Document) Check() error {
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return &UnsupportedSchemaError{Reason: "field with empty name"}
		}
		if seen[f.Name] {
			return &UnsupportedSchemaError{Field: f.Name, Reason: "duplicate field name"}
		}
		if !f.Kind.Valid() {
			return &UnsupportedSchemaError{Field: f.Name, Reason: fmt.Sprintf("unsupported type %q", f.Kind)}
		}
		if len(f.Enum) > 0 && f.Kind != KindString {
			return &UnsupportedSchemaError{Field: f.Name, Reason: "enum is only supported on string fields"}
		}
		seen[f.Name] = true
	}
	return nil
}

// Default returns the document used when a caller supplies no schema: a
// single required string field named "content".
func Default() *Document {
	return &Document{
		Title:  DefaultTitle,
		Fields: []Field{{Name: "content", Kind: KindString, Required: true}},
	}
}

// Field returns the named field and whether it exists.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the names of the required fields in declaration order.
func (d *Document) Required() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// WithRejectExtra returns a copy of d whose validator rejects undeclared
// properties.
func (d *Document) WithRejectExtra() *Document {
	cp := *d
	cp.Fields = append([]Field(nil), d.Fields...)
	cp.RejectExtra = true
	return &cp
}
