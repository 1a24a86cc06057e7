package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible endpoint such as Groq
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAI-compatible provider
type OpenAIConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIProvider creates a provider; an empty API key yields ErrNotConfigured
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = newTracedHTTPClient()

	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &OpenAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Name returns the configured provider name
func (p *OpenAIProvider) Name() string { return p.name }

// Complete sends a chat completion request
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    buildOpenAIMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", p.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return messages
}

func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &UpstreamError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return classify(p.name, err)
}
