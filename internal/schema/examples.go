package schema

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadExamples reads example documents from path. A .jsonl file holds one
// JSON object per line; any other file holds a JSON object or an array of
// objects, falling back to newline-delimited JSON when it does not parse as a
// single value.
func LoadExamples(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return decodeJSONL(path, data)
	}
	samples, err := decodeJSONExamples(path, data)
	if err == nil {
		return samples, nil
	}
	if lines, lerr := decodeJSONL(path, data); lerr == nil && len(lines) > 1 {
		return lines, nil
	}
	return nil, err
}

func decodeJSONExamples(path string, data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if !atEOF(dec) {
		return nil, &LoadError{Path: path, Err: errors.New("unexpected data after the first JSON value")}
	}
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, e := range t {
			obj, ok := e.(map[string]any)
			if !ok {
				return nil, &LoadError{Path: path, Err: fmt.Errorf("element %d is %s, expected an object", i, jsonTypeName(e))}
			}
			out = append(out, obj)
		}
		return out, nil
	}
	return nil, &LoadError{Path: path, Err: fmt.Errorf("expected an object, a list, or JSONL; got %s", jsonTypeName(v))}
}

func decodeJSONL(path string, data []byte) ([]map[string]any, error) {
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, &LoadError{Path: path, Line: line, Err: err}
		}
		if !atEOF(dec) {
			return nil, &LoadError{Path: path, Line: line, Err: errors.New("unexpected data after the JSON object")}
		}
		if obj == nil {
			return nil, &LoadError{Path: path, Line: line, Err: errors.New("expected an object")}
		}
		out = append(out, obj)
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return out, nil
}

// InferSpec merges the key sets of all samples into a flat spec. Each key
// gets the kind observed in its non-null values: integer and number widen to
// number, any other disagreement (or only nulls) falls back to string. Every
// inferred field is optional.
func InferSpec(samples []map[string]any) Spec {
	observed := make(map[string]Kind)
	for _, s := range samples {
		for key, val := range s {
			k, seen := observed[key]
			vk, ok := kindOfValue(val)
			switch {
			case !ok:
				if !seen {
					observed[key] = ""
				}
			case !seen || k == "":
				observed[key] = vk
			case k == vk:
			case (k == KindInteger && vk == KindNumber) || (k == KindNumber && vk == KindInteger):
				observed[key] = KindNumber
			default:
				observed[key] = KindString
			}
		}
	}

	spec := Spec{Properties: make(map[string]Property, len(observed))}
	for key, k := range observed {
		if k == "" {
			k = KindString
		}
		spec.Properties[key] = Property{Type: string(k)}
	}
	return spec
}

// kindOfValue classifies a decoded JSON value. Null has no kind.
func kindOfValue(v any) (Kind, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return KindString, true
	case bool:
		return KindBoolean, true
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return KindInteger, true
		}
		return KindNumber, true
	case float64:
		if t == float64(int64(t)) {
			return KindInteger, true
		}
		return KindNumber, true
	case []any:
		return KindArray, true
	case map[string]any:
		return KindObject, true
	}
	return KindString, true
}

// InferDocument is InferSpec followed by FromSpec.
func InferDocument(samples []map[string]any) (*Document, error) {
	return FromSpec(InferSpec(samples))
}
