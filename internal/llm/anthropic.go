package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider with the Anthropic Messages API
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// AnthropicConfig configures the Anthropic provider
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewAnthropicProvider creates a provider; an empty API key yields ErrNotConfigured
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(newTracedHTTPClient()),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{client: &client, model: cfg.Model}, nil
}

// Name returns "anthropic"
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete sends a Messages API request and joins the returned text blocks
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Messages:    buildAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.mapError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(msgs))
	for i, m := range msgs {
		if m.Role == RoleAssistant {
			out[i] = anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content))
			continue
		}
		out[i] = anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	}
	return out
}

func (p *AnthropicProvider) mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: p.Name(), StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
	}
	return classify(p.Name(), err)
}
