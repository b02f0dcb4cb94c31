package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// For builds a Document from the struct type T. See FromType.
func For[T any]() (*Document, error) {
	return FromType(reflect.TypeOf((*T)(nil)).Elem())
}

// FromType builds a Document from a struct type. Field names come from the
// json tag; a field is required only when its jsonschema tag says so:
//
//	Title    string `json:"title" jsonschema:"required,description=Short title"`
//	Priority string `json:"priority" jsonschema:"required,enum=low|medium|high"`
//
// Nested structs and maps map to object, slices to array. Their contents are
// not typed further. Untagged embedded structs are flattened as encoding/json
// does: a shallower field hides a deeper one of the same name, and two
// fields of the same name at the same depth are rejected.
func FromType(t reflect.Type) (*Document, error) {
	t = derefType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &UnsupportedSchemaError{Reason: fmt.Sprintf("expected a struct type, got %v", t)}
	}

	var fields []Field
	taken := make(map[string]bool)
	visited := make(map[reflect.Type]bool)
	for level := []reflect.Type{t}; len(level) > 0; {
		var next []reflect.Type
		depth := make(map[string]bool)
		var found []Field
		for _, st := range level {
			if visited[st] {
				continue
			}
			visited[st] = true
			for i := 0; i < st.NumField(); i++ {
				sf := st.Field(i)
				tagName, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
				if tagName == "-" {
					continue
				}
				if sf.Anonymous && tagName == "" {
					if et := derefType(sf.Type); et.Kind() == reflect.Struct {
						next = append(next, et)
						continue
					}
				}
				if !sf.IsExported() {
					continue
				}
				f, err := fieldOf(sf)
				if err != nil {
					return nil, err
				}
				if taken[f.Name] {
					continue
				}
				if depth[f.Name] {
					return nil, &UnsupportedSchemaError{Field: f.Name, Reason: "ambiguous field name in embedded structs"}
				}
				depth[f.Name] = true
				found = append(found, f)
			}
		}
		for _, f := range found {
			taken[f.Name] = true
		}
		fields = append(fields, found...)
		level = next
	}
	return New(t.Name(), fields)
}

// fieldOf describes one struct field.
func fieldOf(sf reflect.StructField) (Field, error) {
	name := jsonFieldName(sf)
	kind, ok := kindOf(sf.Type)
	if !ok {
		return Field{}, &UnsupportedSchemaError{Field: name, Reason: fmt.Sprintf("unsupported Go type %s", sf.Type)}
	}
	opts := parseTagOptions(sf.Tag.Get("jsonschema"))
	_, required := opts["required"]
	f := Field{
		Name:        name,
		Kind:        kind,
		Description: opts["description"],
		Required:    required,
	}
	if enum, ok := opts["enum"]; ok && enum != "" {
		for _, v := range strings.Split(enum, "|") {
			f.Enum = append(f.Enum, strings.TrimSpace(v))
		}
	}
	return f, nil
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// kindOf maps a Go type onto a primitive kind.
func kindOf(t reflect.Type) (Kind, bool) {
	t = derefType(t)
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Bool:
		return KindBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger, true
	case reflect.Float32, reflect.Float64:
		return KindNumber, true
	case reflect.Slice, reflect.Array:
		return KindArray, true
	case reflect.Map, reflect.Struct:
		return KindObject, true
	}
	return "", false
}

func jsonFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" {
		return sf.Name
	}
	return name
}

// parseTagOptions splits a jsonschema tag of the form
// "required,description=Some text,enum=a|b" into key/value pairs. Bare
// options map to "". Descriptions may not contain commas.
func parseTagOptions(tag string) map[string]string {
	opts := make(map[string]string)
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		opts[key] = value
	}
	return opts
}
