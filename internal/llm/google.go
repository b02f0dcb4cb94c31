package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	googleoption "google.golang.org/api/option"
)

// googleCaller implements Caller using the Google Generative AI SDK.
// The API key is stored at construction time; a new genai.Client is created
// per Call so that the caller's context governs the connection and the client
// is always closed after use.
type googleCaller struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
}

func newGoogleCaller(cfg Config) (Caller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: google: API key not set")
	}
	return &googleCaller{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (p *googleCaller) Call(ctx context.Context, turns []Turn) (string, error) {
	system, rest := splitSystem(turns)
	if len(rest) == 0 || rest[len(rest)-1].Role != RoleUser {
		return "", &BackendError{Provider: ProviderGoogle, Err: fmt.Errorf("conversation must end with a user turn")}
	}

	opts := []googleoption.ClientOption{googleoption.WithAPIKey(p.apiKey)}
	if p.baseURL != "" {
		opts = append(opts, googleoption.WithEndpoint(p.baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", &BackendError{Provider: ProviderGoogle, Err: fmt.Errorf("genai client: %w", err)}
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if p.maxTokens > 0 {
		m.SetMaxOutputTokens(int32(p.maxTokens))
	}
	m.SetTemperature(float32(p.temperature))
	// Force JSON output mode to prevent the model from wrapping the response
	// in markdown code fences.
	m.ResponseMIMEType = "application/json"

	cs := m.StartChat()
	for _, t := range rest[:len(rest)-1] {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(rest[len(rest)-1].Content))
	if err != nil {
		return "", &BackendError{Provider: ProviderGoogle, Err: fmt.Errorf("send message: %w", err)}
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	return strings.Join(parts, ""), nil
}
