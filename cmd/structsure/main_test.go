package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/structsure/internal/config"
	"github.com/dshills/structsure/internal/llm"
)

// mockMultiCaller returns successive replies from a list.
type mockMultiCaller struct {
	replies []string
	idx     int
}

func (m *mockMultiCaller) Call(_ context.Context, _ []llm.Turn) (string, error) {
	if m.idx >= len(m.replies) {
		return "", fmt.Errorf("mock: no more replies")
	}
	r := m.replies[m.idx]
	m.idx++
	return r, nil
}

func injectMock(t *testing.T, replies ...string) *mockMultiCaller {
	t.Helper()
	mock := &mockMultiCaller{replies: replies}
	orig := llm.NewCaller
	llm.NewCaller = func(llm.Config) (llm.Caller, error) { return mock, nil }
	t.Cleanup(func() { llm.NewCaller = orig })
	return mock
}

func injectErrCaller(t *testing.T) {
	t.Helper()
	orig := llm.NewCaller
	llm.NewCaller = func(cfg llm.Config) (llm.Caller, error) {
		return llm.CallerFunc(func(context.Context, []llm.Turn) (string, error) {
			return "", &llm.BackendError{Provider: cfg.Provider, Err: errors.New("simulated outage")}
		}), nil
	}
	t.Cleanup(func() { llm.NewCaller = orig })
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Model = "mock"
	cfg.Log.Level = "error"
	return cfg
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

type runResult struct {
	err    error
	stdout string
	stderr string
}

func run(t *testing.T, cfg config.Config, f generateFlags, stdin string) runResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := runGenerate(context.Background(), cfg, f, strings.NewReader(stdin), &stdout, &stderr)
	return runResult{err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func TestGenerate_SpecJSON(t *testing.T) {
	mock := injectMock(t,
		`{"title": "call Bob"}`,
		"```json\n{\"title\": \"call Bob\", \"priority\": \"high\", \"tags\": [\"phone\"]}\n```",
	)
	res := run(t, testConfig(), generateFlags{
		specFile: "../../testdata/specs/task.json",
		prompt:   "urgent: call Bob about the invoice",
		format:   "json",
	}, "")
	if code := exitCode(res.err); code != 0 {
		t.Fatalf("expected exit 0, got %d: %v", code, res.err)
	}
	if mock.idx != 2 {
		t.Errorf("expected 2 calls, got %d", mock.idx)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("parse output: %v\n%s", err, res.stdout)
	}
	if got["priority"] != "high" || got["title"] != "call Bob" {
		t.Errorf("value = %#v", got)
	}
	if v, ok := got["due_date"]; !ok || v != nil {
		t.Errorf("absent optional field should be null, got %#v (present=%v)", v, ok)
	}
}

func TestGenerate_DefaultDocumentMarkdown(t *testing.T) {
	injectMock(t, `{"content": "hello there"}`)
	res := run(t, testConfig(), generateFlags{prompt: "say hi", format: "markdown"}, "")
	if res.err != nil {
		t.Fatalf("runGenerate: %v", res.err)
	}
	if !strings.Contains(res.stdout, "| content | hello there |") {
		t.Errorf("markdown output:\n%s", res.stdout)
	}
}

func TestGenerate_PromptFromStdin(t *testing.T) {
	injectMock(t, `{"name": "Ada", "age": 36}`)
	res := run(t, testConfig(), generateFlags{
		schemaFile: "../../testdata/specs/contact.schema.json",
		promptFile: "-",
		format:     "json",
	}, "Ada Lovelace, 36\n")
	if res.err != nil {
		t.Fatalf("runGenerate: %v", res.err)
	}
	if !strings.Contains(res.stdout, `"age": 36`) {
		t.Errorf("output:\n%s", res.stdout)
	}
}

func TestGenerate_OutFile(t *testing.T) {
	injectMock(t, `{"content": "x"}`)
	out := filepath.Join(t.TempDir(), "out.json")
	res := run(t, testConfig(), generateFlags{prompt: "p", format: "json", out: out}, "")
	if res.err != nil {
		t.Fatalf("runGenerate: %v", res.err)
	}
	if res.stdout != "" {
		t.Errorf("stdout should be empty when --out is set, got %q", res.stdout)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(b), `"content": "x"`) {
		t.Errorf("file content = %s", b)
	}
}

func TestGenerate_RetriesExhausted_ExitsFive(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	mock := injectMock(t, "not json at all", "still not json", `{"content": "too late"}`)

	res := run(t, cfg, generateFlags{prompt: "p", format: "json"}, "")
	if code := exitCode(res.err); code != exitCodeRetries {
		t.Errorf("expected exit %d, got %d: %v", exitCodeRetries, code, res.err)
	}
	if mock.idx != 2 {
		t.Errorf("expected 2 calls, got %d", mock.idx)
	}
	if res.stdout != "" {
		t.Errorf("no partial value should be written, got %q", res.stdout)
	}
}

func TestGenerate_BackendError_ExitsThree(t *testing.T) {
	injectErrCaller(t)
	res := run(t, testConfig(), generateFlags{prompt: "p", format: "json"}, "")
	if code := exitCode(res.err); code != exitCodeBackend {
		t.Errorf("expected exit %d, got %d: %v", exitCodeBackend, code, res.err)
	}
}

func TestGenerate_BadInput_ExitsOne(t *testing.T) {
	injectMock(t, `{"content": "x"}`)
	cases := []struct {
		name string
		f    generateFlags
	}{
		{"missing prompt", generateFlags{format: "json"}},
		{"both prompt sources", generateFlags{prompt: "p", promptFile: "-", format: "json"}},
		{"both schema sources", generateFlags{prompt: "p", specFile: "a.json", schemaFile: "b.json", format: "json"}},
		{"missing spec file", generateFlags{prompt: "p", specFile: "../../testdata/specs/nope.json", format: "json"}},
		{"unknown format", generateFlags{prompt: "p", format: "yaml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := run(t, testConfig(), tc.f, "")
			if code := exitCode(res.err); code != exitCodeUsage {
				t.Errorf("expected exit %d, got %d: %v", exitCodeUsage, code, res.err)
			}
		})
	}
}

func TestGenerate_MissingAPIKeyNamesVariable(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "anthropic"
	res := run(t, cfg, generateFlags{prompt: "p", format: "json"}, "")
	if code := exitCode(res.err); code != exitCodeUsage {
		t.Fatalf("expected exit %d, got %d: %v", exitCodeUsage, code, res.err)
	}
	if !strings.Contains(res.err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("error should name the key variable: %v", res.err)
	}
}

func TestGenerate_LogsToStderr(t *testing.T) {
	injectMock(t, `{"content": "x"}`)
	cfg := testConfig()
	cfg.Log = config.LogConfig{Level: "info", Format: "json"}
	res := run(t, cfg, generateFlags{prompt: "p", format: "json"}, "")
	if res.err != nil {
		t.Fatalf("runGenerate: %v", res.err)
	}
	if !strings.Contains(res.stderr, `"message":"reply validated"`) {
		t.Errorf("stderr = %q", res.stderr)
	}
	if strings.Contains(res.stdout, "reply validated") {
		t.Error("logs must not reach stdout")
	}
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	var seen llm.Config
	orig := llm.NewCaller
	llm.NewCaller = func(cfg llm.Config) (llm.Caller, error) {
		seen = cfg
		return &mockMultiCaller{replies: []string{`{"content": "x"}`}}, nil
	}
	t.Cleanup(func() { llm.NewCaller = orig })

	path := filepath.Join(t.TempDir(), "structsure.yaml")
	if err := os.WriteFile(path, []byte("provider: ollama\nmodel: mistral\nmax_tokens: 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"PROVIDER", "MODEL", "MAX_TOKENS"} {
		t.Setenv(config.EnvPrefix+k, "")
	}

	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"generate", "--config", path, "--log-level", "error", "--max-tokens", "250", "--prompt", "p"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen.Provider != "ollama" || seen.Model != "mistral" || seen.MaxTokens != 250 {
		t.Errorf("llm config = %+v", seen)
	}
}

func TestInferCmd(t *testing.T) {
	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"infer", "../../testdata/examples/people.jsonl"})
	if err := root.Execute(); err != nil {
		t.Fatalf("infer: %v", err)
	}
	var spec struct {
		Properties map[string]struct {
			Type     string `json:"type"`
			Required bool   `json:"required"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &spec); err != nil {
		t.Fatalf("parse: %v\n%s", err, stdout.String())
	}
	if len(spec.Properties) == 0 {
		t.Fatal("expected inferred properties")
	}
	for name, p := range spec.Properties {
		if p.Required {
			t.Errorf("%s: inferred fields should be optional", name)
		}
	}
}

func TestInferCmd_BadFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"infer", "../../testdata/examples/broken.jsonl"})
	if code := exitCode(root.Execute()); code != exitCodeUsage {
		t.Errorf("expected exit %d, got %d", exitCodeUsage, code)
	}
}

func TestSchemaCmd(t *testing.T) {
	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"schema", "--spec", "../../testdata/specs/task.json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("schema: %v", err)
	}
	var js struct {
		Type     string         `json:"type"`
		Required []string       `json:"required"`
		Props    map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &js); err != nil {
		t.Fatalf("parse: %v\n%s", err, stdout.String())
	}
	if js.Type != "object" || len(js.Props) != 5 {
		t.Errorf("schema = %+v", js)
	}
	if strings.Join(js.Required, ",") != "priority,title" {
		t.Errorf("required = %v", js.Required)
	}

	stdout.Reset()
	root = newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"schema", "--schema", "../../testdata/specs/contact.schema.json", "--format", "markdown"})
	if err := root.Execute(); err != nil {
		t.Fatalf("schema markdown: %v", err)
	}
	if !strings.Contains(stdout.String(), "Undeclared fields are rejected.") {
		t.Errorf("markdown:\n%s", stdout.String())
	}
}

func TestNewLogger_Errors(t *testing.T) {
	if _, err := newLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := newLogger(config.LogConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for bad format")
	}
}
