package llm

import (
	"context"
	"errors"
	"fmt"

	"englishapp/internal/config"
	"englishapp/internal/observability"
)

// Providers holds one provider per feature
type Providers struct {
	Chat       Provider
	Speaking   Provider
	Dictionary Provider
	Quiz       Provider
}

// unconfiguredProvider answers every request with ErrNotConfigured so features degrade to their
// soft fallback replies instead of failing at startup
type unconfiguredProvider struct {
	name string
}

func (p unconfiguredProvider) Name() string { return p.name }

func (p unconfiguredProvider) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

// NewProviders builds the instrumented provider set from configuration
func NewProviders(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Providers, error) {
	chat, err := newChatProvider(cfg)
	if err != nil {
		return nil, err
	}

	groq, err := NewOpenAIProvider(OpenAIConfig{
		Name:    "groq",
		APIKey:  cfg.Groq.APIKey,
		BaseURL: cfg.Groq.BaseURL,
		Model:   cfg.Groq.Model,
	})
	quiz, err := orUnconfigured("groq", groq, err)
	if err != nil {
		return nil, err
	}

	gemini, err := NewGeminiProvider(ctx, GeminiConfig{
		APIKey:   cfg.Gemini.APIKey,
		BaseURL:  cfg.Gemini.BaseURL,
		Model:    cfg.Gemini.Model,
		Versions: cfg.Dictionary.APIVersions,
	})
	dictionary, err := orUnconfigured("gemini", gemini, err)
	if err != nil {
		return nil, err
	}

	for purpose, p := range map[string]Provider{"chat": chat, "quiz": quiz, "dictionary": dictionary} {
		if _, ok := p.(unconfiguredProvider); ok {
			logger.Warn(ctx, "LLM provider has no API key; requests will return fallback replies",
				map[string]interface{}{"purpose": purpose, "provider": p.Name()})
		}
	}

	return &Providers{
		Chat:       Instrument(chat, "chat", logger),
		Speaking:   Instrument(chat, "speaking", logger),
		Dictionary: Instrument(dictionary, "dictionary", logger),
		Quiz:       Instrument(quiz, "quiz", logger),
	}, nil
}

func newChatProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Chat.Provider {
	case config.ChatProviderAnthropic:
		p, err := NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			BaseURL: cfg.Anthropic.BaseURL,
			Model:   cfg.Anthropic.Model,
		})
		return orUnconfigured("anthropic", p, err)
	case config.ChatProviderOpenAI, "":
		p, err := NewOpenAIProvider(OpenAIConfig{
			Name:    "openai",
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
		return orUnconfigured("openai", p, err)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Chat.Provider)
	}
}

// orUnconfigured substitutes an unconfiguredProvider when construction reported ErrNotConfigured
func orUnconfigured(name string, p Provider, err error) (Provider, error) {
	if errors.Is(err, ErrNotConfigured) {
		return unconfiguredProvider{name: name}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
