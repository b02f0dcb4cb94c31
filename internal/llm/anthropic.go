package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicMaxTokens is sent when Config.MaxTokens is unset; the
// Messages API requires a limit.
const defaultAnthropicMaxTokens = 4096

// anthropicCaller implements Caller using the Anthropic Messages API.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicCaller struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

func newAnthropicCaller(cfg Config) (Caller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic: API key not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxTransportRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &anthropicCaller{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (p *anthropicCaller) Call(ctx context.Context, turns []Turn) (string, error) {
	system, rest := splitSystem(turns)

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for _, t := range rest {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(p.temperature),
		Messages:    messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", &BackendError{Provider: ProviderAnthropic, Err: fmt.Errorf("messages.new: %w", err)}
	}

	var parts []string
	for _, block := range msg.Content {
		// "text" is the only content block type that carries assistant text.
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, ""), nil
}
