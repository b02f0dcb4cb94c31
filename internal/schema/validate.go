package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// check is the primitive test for one kind. It returns the normalized value
// and whether v has the expected type.
type check func(v any) (any, bool)

// checks holds one variant per Kind. The set is closed: New rejects any kind
// not present here.
var checks = map[Kind]check{
	KindString: func(v any) (any, bool) {
		s, ok := v.(string)
		return s, ok
	},
	KindInteger: func(v any) (any, bool) {
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if err != nil || f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
			return nil, false
		}
		return int64(f), true
	},
	KindNumber: func(v any) (any, bool) {
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		f, err := n.Float64()
		return f, err == nil
	},
	KindBoolean: func(v any) (any, bool) {
		b, ok := v.(bool)
		return b, ok
	},
	KindArray: func(v any) (any, bool) {
		a, ok := v.([]any)
		if !ok {
			return nil, false
		}
		return normalize(a), true
	},
	KindObject: func(v any) (any, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		return normalize(m), true
	},
}

// Validator turns a raw model reply into a validated value. It is derived
// from exactly one Document and holds no mutable state.
type Validator struct {
	doc *Document
}

// Validator returns the validator for d.
func (d *Document) Validator() *Validator {
	return &Validator{doc: d}
}

// Validate parses raw and checks it against the document. On success the
// returned map holds every declared field; absent optional fields are nil.
// On failure the error is a *ValidationFailure listing every defect, or an
// *UnsupportedSchemaError when the document itself cannot be validated.
func (v *Validator) Validate(raw string) (map[string]any, error) {
	if err := v.doc.Check(); err != nil {
		return nil, err
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, &ValidationFailure{Problems: []error{err}}
	}

	var problems []error
	out := make(map[string]any, len(v.doc.Fields))
	for _, f := range v.doc.Fields {
		val, present := obj[f.Name]
		if !present || val == nil {
			if f.Required {
				problems = append(problems, &MissingFieldError{Field: f.Name})
				continue
			}
			out[f.Name] = nil
			continue
		}
		chk, ok := checks[f.Kind]
		if !ok {
			return nil, &UnsupportedSchemaError{Field: f.Name, Reason: fmt.Sprintf("unsupported type %q", f.Kind)}
		}
		norm, ok := chk(val)
		if !ok {
			problems = append(problems, &TypeMismatchError{Field: f.Name, Want: f.Kind, Got: jsonTypeName(val)})
			continue
		}
		if len(f.Enum) > 0 {
			s, ok := norm.(string)
			if !ok {
				return nil, &UnsupportedSchemaError{Field: f.Name, Reason: "enum is only supported on string fields"}
			}
			if !slices.Contains(f.Enum, s) {
				problems = append(problems, &EnumError{Field: f.Name, Value: s, Allowed: f.Enum})
				continue
			}
		}
		out[f.Name] = norm
	}

	if v.doc.RejectExtra {
		var extras []string
		for name := range obj {
			if _, ok := v.doc.Field(name); !ok {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		for _, name := range extras {
			problems = append(problems, &ExtraFieldError{Field: name})
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationFailure{Problems: problems}
	}
	return out, nil
}

// decodeObject parses raw as exactly one JSON object. Markdown fences are
// stripped first; invalid escape sequences get one sanitizing retry.
func decodeObject(raw string) (map[string]any, error) {
	raw = StripMarkdownFences(raw)
	obj, err := decodeStrict(raw)
	if err == nil {
		return obj, nil
	}
	var se *SyntaxError
	if errors.As(err, &se) {
		if fixed := fixInvalidJSONEscapes(raw); fixed != raw {
			if obj2, err2 := decodeStrict(fixed); err2 == nil {
				return obj2, nil
			}
		}
	}
	return nil, err
}

func decodeStrict(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &SyntaxError{Err: err}
	}
	if !atEOF(dec) {
		return nil, &SyntaxError{Err: errors.New("unexpected data after the JSON object")}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SyntaxError{Err: fmt.Errorf("expected a JSON object, got %s", jsonTypeName(v))}
	}
	return obj, nil
}

// atEOF reports whether dec has nothing left but whitespace. dec.More is not
// enough: it reports false before a stray '}' or ']'.
func atEOF(dec *json.Decoder) bool {
	_, err := dec.Token()
	return err == io.EOF
}

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line. Truncated replies may lack
// the closing fence.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// StripMarkdownFences removes a leading/trailing markdown code fence that
// models sometimes wrap around JSON output.
func StripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// invalidJSONEscapeRe matches a backslash followed by a character that is not
// a valid JSON escape. Models emit these when quoting regexes (\d, \w).
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// normalize converts json.Number values inside arrays and objects to int64
// when integral and float64 otherwise.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, int64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// Decode validates raw against d and decodes the validated value into out,
// which must be a pointer.
func (d *Document) Decode(raw string, out any) error {
	val, err := d.Validator().Validate(raw)
	if err != nil {
		return err
	}
	return DecodeValue(val, out)
}

// DecodeValue re-encodes a validated value into the Go value out points to.
// A value the Go type cannot hold comes back as a *ValidationFailure holding
// a *RangeError, so it can be reported like any other defect.
func DecodeValue(val map[string]any, out any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("schema: encode value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(out); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			field := ute.Field
			if field == "" {
				field = "value"
			}
			return &ValidationFailure{Problems: []error{&RangeError{Field: field, Value: ute.Value, Type: ute.Type.String()}}}
		}
		return fmt.Errorf("schema: decode value: %w", err)
	}
	return nil
}
