// Package config resolves backend and loop settings for the CLI. Values are
// layered: built-in defaults, then an optional YAML file, then STRUCTSURE_*
// environment variables. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/structsure/internal/llm"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STRUCTSURE_"

// Config holds everything needed to build a backend caller and run the loop.
type Config struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxRetries  int           `yaml:"max_retries"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Log         LogConfig     `yaml:"log"`

	// TransportRetries bounds SDK-level retries of transient HTTP failures.
	// These happen inside a single attempt and never count against MaxRetries.
	TransportRetries int `yaml:"transport_retries"`

	// APIKey is never read from the YAML file.
	APIKey string `yaml:"-"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Provider:         llm.ProviderOpenAI,
		MaxRetries:       llm.DefaultMaxRetries,
		MaxTokens:        4096,
		Temperature:      0,
		Timeout:          2 * time.Minute,
		TransportRetries: 2,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// defaultModels maps each provider to the model used when none is set.
var defaultModels = map[string]string{
	llm.ProviderOpenAI:    "gpt-4o",
	llm.ProviderOllama:    "llama3",
	llm.ProviderAnthropic: "claude-sonnet-4-5",
	llm.ProviderGoogle:    "gemini-1.5-pro",
}

// DefaultModel returns the default model for provider, or "" if unknown.
func DefaultModel(provider string) string {
	return defaultModels[strings.ToLower(provider)]
}

// apiKeyEnv names the conventional credential variable per provider.
var apiKeyEnv = map[string]string{
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
	llm.ProviderGoogle:    "GOOGLE_API_KEY",
}

// APIKeyEnv returns the environment variable holding provider's API key.
// Ollama needs none.
func APIKeyEnv(provider string) string {
	return apiKeyEnv[strings.ToLower(provider)]
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from STRUCTSURE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("PROVIDER", &c.Provider)
	str("MODEL", &c.Model)
	str("BASE_URL", &c.BaseURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sMAX_RETRIES: %w", EnvPrefix, err)
		}
		c.MaxRetries = n
	}
	if v, ok := lookup(EnvPrefix + "TRANSPORT_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sTRANSPORT_RETRIES: %w", EnvPrefix, err)
		}
		c.TransportRetries = n
	}
	if v, ok := lookup(EnvPrefix + "MAX_TOKENS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sMAX_TOKENS: %w", EnvPrefix, err)
		}
		c.MaxTokens = n
	}
	if v, ok := lookup(EnvPrefix + "TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %sTEMPERATURE: %w", EnvPrefix, err)
		}
		c.Temperature = f
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Timeout = d
	}
	return nil
}

// Resolve fills the model and API key that depend on the chosen provider.
// The key comes from the provider's conventional environment variable.
func (c *Config) Resolve(lookup func(string) (string, bool)) {
	c.Provider = strings.ToLower(c.Provider)
	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}
	if c.APIKey == "" {
		if name := APIKeyEnv(c.Provider); name != "" {
			if v, ok := lookup(name); ok {
				c.APIKey = v
			}
		}
	}
}

// Validate reports configuration that cannot produce a working run.
func (c Config) Validate() error {
	var errs []error
	if _, ok := defaultModels[strings.ToLower(c.Provider)]; !ok {
		errs = append(errs, fmt.Errorf("unknown provider %q (available: openai, ollama, anthropic, google)", c.Provider))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if c.TransportRetries < 0 {
		errs = append(errs, fmt.Errorf("transport_retries must not be negative, got %d", c.TransportRetries))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LLM converts c into the backend configuration.
func (c Config) LLM() llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,

		MaxTransportRetries: c.TransportRetries,
	}
}
