package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini generateContent API, trying each API version in order
type GeminiProvider struct {
	client   *genai.Client
	model    string
	versions []string
}

// GeminiConfig configures the Gemini provider
type GeminiConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Versions []string
}

// NewGeminiProvider creates a provider; an empty API key yields ErrNotConfigured
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newTracedHTTPClient(),
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, &ProviderUnavailableError{Provider: "gemini", Err: err}
	}

	versions := cfg.Versions
	if len(versions) == 0 {
		versions = []string{"v1beta", "v1"}
	}

	return &GeminiProvider{client: client, model: cfg.Model, versions: versions}, nil
}

// Name returns "gemini"
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete tries every configured API version and returns the first non-empty answer.
// The error of the last attempt is returned when all versions fail.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for _, version := range p.versions {
		text, err := p.completeWithVersion(ctx, version, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (p *GeminiProvider) completeWithVersion(ctx context.Context, version string, req Request) (string, error) {
	temperature := float32(req.Temperature)
	genCfg := &genai.GenerateContentConfig{
		HTTPOptions:     &genai.HTTPOptions{APIVersion: version},
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSONMode {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, buildGeminiContents(req.Messages), genCfg)
	if err != nil {
		return "", p.mapError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out[i] = genai.NewContentFromText(m.Content, genai.Role(role))
	}
	return out
}

func (p *GeminiProvider) mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: p.Name(), StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &UpstreamError{Provider: p.Name(), StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return classify(p.Name(), err)
}
