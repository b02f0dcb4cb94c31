package schema_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/structsure/internal/schema"
)

func examplePath(name string) string {
	return filepath.Join("..", "..", "testdata", "examples", name)
}

func kindsOf(s schema.Spec) map[string]string {
	out := make(map[string]string, len(s.Properties))
	for name, p := range s.Properties {
		out[name] = p.Type
	}
	return out
}

func TestLoadExamples(t *testing.T) {
	cases := []struct {
		file      string
		wantCount int
	}{
		{"people.jsonl", 3},
		{"people.json", 2},
		{"single.json", 1},
		{"ndjson.json", 2},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			samples, err := schema.LoadExamples(examplePath(tc.file))
			if err != nil {
				t.Fatalf("LoadExamples: %v", err)
			}
			if len(samples) != tc.wantCount {
				t.Errorf("got %d samples, want %d", len(samples), tc.wantCount)
			}
		})
	}
}

func TestLoadExamples_Errors(t *testing.T) {
	cases := []struct {
		file     string
		wantLine int
	}{
		{"scalar.json", 0},
		{"mixed.json", 0},
		{"broken.jsonl", 2},
		{"broken.json", 0},
		{"trailing.jsonl", 2},
		{"does-not-exist.json", 0},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			_, err := schema.LoadExamples(examplePath(tc.file))
			var le *schema.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected LoadError, got %v", err)
			}
			if le.Line != tc.wantLine {
				t.Errorf("line = %d, want %d", le.Line, tc.wantLine)
			}
		})
	}
}

func TestInferSpec(t *testing.T) {
	cases := []struct {
		file string
		want map[string]string
	}{
		{"people.jsonl", map[string]string{
			"name":   "string",
			"age":    "integer",
			"score":  "number",
			"active": "boolean",
			"tags":   "array",
			"meta":   "object",
		}},
		{"people.json", map[string]string{
			"name":  "string",
			"age":   "string",
			"email": "string",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			samples, err := schema.LoadExamples(examplePath(tc.file))
			if err != nil {
				t.Fatal(err)
			}
			spec := schema.InferSpec(samples)
			got := kindsOf(spec)
			if len(got) != len(tc.want) {
				t.Errorf("got keys %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("%s: kind %q, want %q", k, got[k], v)
				}
			}
			for name, p := range spec.Properties {
				if p.Required {
					t.Errorf("%s: inferred fields must be optional", name)
				}
			}
		})
	}
}

func TestInferSpec_NullOnlyFallsBackToString(t *testing.T) {
	spec := schema.InferSpec([]map[string]any{{"a": nil}, {"a": nil, "b": 1.5}})
	if spec.Properties["a"].Type != "string" {
		t.Errorf("a = %q, want string", spec.Properties["a"].Type)
	}
	if spec.Properties["b"].Type != "number" {
		t.Errorf("b = %q, want number", spec.Properties["b"].Type)
	}
}

func TestInferDocument_ValidatesSamples(t *testing.T) {
	samples, err := schema.LoadExamples(examplePath("people.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := schema.InferDocument(samples)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Validator().Validate(`{"name": "Barbara", "age": 50}`); err != nil {
		t.Errorf("expected sample-shaped reply to validate: %v", err)
	}
}
