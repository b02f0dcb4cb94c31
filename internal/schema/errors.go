package schema

import (
	"fmt"
	"strings"
)

// LoadError is returned when an examples file cannot be decoded as a JSON
// object, a JSON array of objects, or newline-delimited JSON.
type LoadError struct {
	Path string
	Line int // 1-based line for JSONL input, 0 otherwise
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema: load %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("schema: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnsupportedSchemaError is returned when a schema description cannot be
// mapped onto the supported field kinds.
type UnsupportedSchemaError struct {
	Field  string
	Reason string
}

func (e *UnsupportedSchemaError) Error() string {
	if e.Field == "" {
		return "schema: unsupported: " + e.Reason
	}
	return fmt.Sprintf("schema: unsupported field %q: %s", e.Field, e.Reason)
}

// SyntaxError records a reply that is not a single JSON object.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("json_parse: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// MissingFieldError records an absent required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: field required", e.Field)
}

// TypeMismatchError records a field whose value has the wrong primitive type.
type TypeMismatchError struct {
	Field string
	Want  Kind
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Field, e.Want, e.Got)
}

// EnumError records a string value outside a field's allowed set.
type EnumError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("%s: value %q is not one of [%s]", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// ExtraFieldError records an undeclared property when the document rejects
// extras.
type ExtraFieldError struct {
	Field string
}

func (e *ExtraFieldError) Error() string {
	return fmt.Sprintf("%s: extra field not permitted", e.Field)
}

// RangeError records a value that matches its field's kind but not the Go
// type it decodes into, such as 300 for a uint8.
type RangeError struct {
	Field string
	Value string
	Type  string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s does not fit %s", e.Field, e.Value, e.Type)
}

// ValidationFailure collects every defect found in one reply. errors.As
// reaches the individual defects through Unwrap.
type ValidationFailure struct {
	Problems []error
}

func (e *ValidationFailure) Error() string {
	if len(e.Problems) == 1 {
		return "validation: " + e.Problems[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "validation: %d errors", len(e.Problems))
	for _, p := range e.Problems {
		sb.WriteString("\n  - ")
		sb.WriteString(p.Error())
	}
	return sb.String()
}

func (e *ValidationFailure) Unwrap() []error { return e.Problems }
