package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/structsure/internal/config"
	"github.com/dshills/structsure/internal/llm"
	"github.com/dshills/structsure/internal/render"
	"github.com/dshills/structsure/internal/schema"
)

// generateFlags holds the inputs of the generate subcommand that are not
// part of config.Config.
type generateFlags struct {
	specFile   string
	schemaFile string
	prompt     string
	promptFile string
	format     string
	out        string
}

func newGenerateCmd() *cobra.Command {
	var (
		f   generateFlags
		ovr config.Config
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Prompt a model until its reply validates against a schema",
		Example: `  structsure generate --spec task.json --prompt "urgent: call Bob about the invoice"
  echo "buy milk" | structsure generate --schema contact.schema.json --prompt-file - --provider ollama`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, &cfg, ovr)
			cfg.Resolve(os.LookupEnv)
			if err := cfg.Validate(); err != nil {
				return usageErr(err)
			}
			return runGenerate(cmd.Context(), cfg, f, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.specFile, "spec", "", "flat field spec (JSON)")
	fl.StringVar(&f.schemaFile, "schema", "", "JSON Schema document")
	fl.StringVar(&f.prompt, "prompt", "", "prompt text")
	fl.StringVar(&f.promptFile, "prompt-file", "", "read the prompt from a file (- for stdin)")
	fl.StringVar(&f.format, "format", "json", "output format (json or markdown)")
	fl.StringVarP(&f.out, "out", "o", "", "write output to a file instead of stdout")

	fl.StringVar(&ovr.Provider, "provider", "", "backend (openai, ollama, anthropic, google)")
	fl.StringVar(&ovr.Model, "model", "", "model name (default depends on provider)")
	fl.StringVar(&ovr.BaseURL, "base-url", "", "override the backend endpoint")
	fl.IntVar(&ovr.MaxRetries, "max-retries", 0, "maximum attempts before giving up")
	fl.IntVar(&ovr.MaxTokens, "max-tokens", 0, "maximum tokens per reply")
	fl.Float64Var(&ovr.Temperature, "temperature", 0, "sampling temperature")
	fl.DurationVar(&ovr.Timeout, "timeout", 0, "per-call timeout")
	return cmd
}

// applyFlagOverrides copies every explicitly set flag from ovr into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, ovr config.Config) {
	fl := cmd.Flags()
	if fl.Changed("provider") {
		cfg.Provider = ovr.Provider
	}
	if fl.Changed("model") {
		cfg.Model = ovr.Model
	}
	if fl.Changed("base-url") {
		cfg.BaseURL = ovr.BaseURL
	}
	if fl.Changed("max-retries") {
		cfg.MaxRetries = ovr.MaxRetries
	}
	if fl.Changed("max-tokens") {
		cfg.MaxTokens = ovr.MaxTokens
	}
	if fl.Changed("temperature") {
		cfg.Temperature = ovr.Temperature
	}
	if fl.Changed("timeout") {
		cfg.Timeout = ovr.Timeout
	}
}

// runGenerate executes one generation run and writes the rendered value.
func runGenerate(ctx context.Context, cfg config.Config, f generateFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return usageErr(err)
	}
	ctx = logger.WithContext(ctx)

	if f.format != "json" && f.format != "markdown" {
		return usageErr(fmt.Errorf("unknown format %q (available: json, markdown)", f.format))
	}

	doc, err := loadDocument(f.specFile, f.schemaFile)
	if err != nil {
		return usageErr(err)
	}
	prompt, err := readPrompt(f, stdin)
	if err != nil {
		return usageErr(err)
	}

	caller, err := llm.NewCaller(cfg.LLM())
	if err != nil {
		if name := config.APIKeyEnv(cfg.Provider); name != "" && cfg.APIKey == "" {
			return usageErr(fmt.Errorf("%w (set %s)", err, name))
		}
		return usageErr(err)
	}
	caller = llm.WithTimeout(caller, cfg.Timeout)

	logger.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Str("schema", doc.Title).
		Int("max_retries", cfg.MaxRetries).
		Msg("generating")

	start := time.Now()
	value, err := llm.Generate(ctx, caller, doc, prompt, llm.Options{MaxRetries: cfg.MaxRetries})
	if err != nil {
		return classify(err)
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("reply validated")

	var out []byte
	switch f.format {
	case "markdown":
		out = []byte(render.Markdown(doc, value))
	default:
		out, err = render.JSON(value)
		if err != nil {
			return err
		}
		out = append(out, '\n')
	}
	return writeOutput(ctx, f.out, out, stdout)
}

// classify maps loop errors to exit codes.
func classify(err error) error {
	var be *llm.BackendError
	switch {
	case errors.Is(err, llm.ErrMaxRetriesExceeded):
		return &exitError{code: exitCodeRetries, err: err}
	case errors.As(err, &be):
		return &exitError{code: exitCodeBackend, err: err}
	default:
		return err
	}
}

// loadDocument picks the schema source. With neither file set it returns
// the default single-field document.
func loadDocument(specFile, schemaFile string) (*schema.Document, error) {
	switch {
	case specFile != "" && schemaFile != "":
		return nil, fmt.Errorf("--spec and --schema are mutually exclusive")
	case specFile != "":
		data, err := os.ReadFile(specFile)
		if err != nil {
			return nil, fmt.Errorf("read spec: %w", err)
		}
		return schema.ParseSpec(data)
	case schemaFile != "":
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		return schema.FromJSONSchema(data)
	default:
		return schema.Default(), nil
	}
}

// readPrompt returns the prompt from --prompt, --prompt-file or stdin.
func readPrompt(f generateFlags, stdin io.Reader) (string, error) {
	if f.prompt != "" && f.promptFile != "" {
		return "", fmt.Errorf("--prompt and --prompt-file are mutually exclusive")
	}
	var text string
	switch {
	case f.prompt != "":
		text = f.prompt
	case f.promptFile == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		text = string(b)
	case f.promptFile != "":
		b, err := os.ReadFile(f.promptFile)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("a prompt is required (--prompt or --prompt-file)")
	}
	return text, nil
}

// writeOutput writes b to path, or to stdout when path is empty.
func writeOutput(ctx context.Context, path string, b []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("output written")
	return nil
}
