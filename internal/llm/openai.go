package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiCaller implements Caller using the OpenAI chat completions API. It
// also serves Ollama through its OpenAI-compatible endpoint.
type openaiCaller struct {
	client      openai.Client
	provider    string
	model       string
	maxTokens   int
	temperature float64
}

func newOpenAICaller(cfg Config) (Caller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: openai: API key not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxTransportRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiCaller{
		client:      openai.NewClient(opts...),
		provider:    ProviderOpenAI,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// newOllamaCaller targets a local Ollama server. Ollama ignores the API key
// but the client requires one.
func newOllamaCaller(cfg Config) (Caller, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	return &openaiCaller{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(cfg.MaxTransportRetries),
		),
		provider:    ProviderOllama,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (p *openaiCaller) Call(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(p.temperature),
		// JSON mode keeps the reply to a single object without fences.
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &BackendError{Provider: p.provider, Err: fmt.Errorf("chat.completions.new: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{Provider: p.provider, Err: fmt.Errorf("response contained no choices")}
	}
	// An empty message is a content problem, left to validation.
	return resp.Choices[0].Message.Content, nil
}
