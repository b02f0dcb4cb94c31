package llm

import (
	"fmt"
	"strings"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// DefaultOllamaBaseURL is Ollama's OpenAI-compatible endpoint on localhost.
const DefaultOllamaBaseURL = "http://localhost:11434/v1/"

// Config describes one backend. Credentials are supplied by the caller;
// nothing in this package reads the environment.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	// MaxTransportRetries is passed to SDK clients that retry transient HTTP
	// failures on their own. Zero disables SDK retries.
	MaxTransportRetries int
}

// NewCaller builds the Caller for cfg.Provider. It is a package-level
// variable so tests can replace it; restore the original with t.Cleanup.
var NewCaller func(cfg Config) (Caller, error) = defaultNewCaller

func defaultNewCaller(cfg Config) (Caller, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: provider %q: model is required", cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return newOpenAICaller(cfg)
	case ProviderOllama:
		return newOllamaCaller(cfg)
	case ProviderAnthropic:
		return newAnthropicCaller(cfg)
	case ProviderGoogle:
		return newGoogleCaller(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
