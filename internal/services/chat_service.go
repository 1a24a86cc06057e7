package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"englishapp/internal/config"
	"englishapp/internal/llm"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const upstreamSnippetLength = 120

// ChatServiceInterface defines the interface for the teaching-assistant chat
type ChatServiceInterface interface {
	Reply(ctx context.Context, message string, history []models.ChatMessage) (string, error)
}

// ChatService relays a conversation to the chat provider
type ChatService struct {
	provider llm.Provider
	cfg      config.ChatConfig
	logger   *observability.Logger
}

// NewChatService creates a new ChatService
func NewChatService(provider llm.Provider, cfg config.ChatConfig, logger *observability.Logger) *ChatService {
	return &ChatService{provider: provider, cfg: cfg, logger: logger}
}

// Reply returns the assistant's answer. Provider failures never surface as errors: they are
// rendered as a "[Fallback] ..." reply. Only an empty message is rejected.
func (s *ChatService) Reply(ctx context.Context, message string, history []models.ChatMessage) (result0 string, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "reply",
		observability.AttributeProvider(s.provider.Name()),
		attribute.Int("chat.history_length", len(history)),
	)
	defer observability.FinishSpan(span, &err)

	message = strings.TrimSpace(message)
	if message == "" {
		return "", contextutils.WrapError(contextutils.ErrMissingRequired, "message is required")
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.Role(m.Role)
		if (role != llm.RoleUser && role != llm.RoleAssistant) || m.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	span.SetAttributes(attribute.Int("chat.messages_sent", len(messages)))

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reply, callErr := s.provider.Complete(callCtx, llm.Request{
		System:      s.cfg.SystemPrompt,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if callErr != nil {
		span.SetAttributes(attribute.String("chat.fallback", callErr.Error()))
		return fallbackReply(callErr), nil
	}
	return reply, nil
}

// fallbackReply renders a provider failure as a readable reply
func fallbackReply(err error) string {
	if upErr, ok := llm.AsUpstream(err); ok {
		return fmt.Sprintf("[Fallback] AI upstream error %d: %s", upErr.StatusCode, upErr.Snippet(upstreamSnippetLength))
	}
	switch {
	case llm.IsTimeout(err):
		return "[Fallback] AI service timeout"
	case errors.Is(err, llm.ErrEmptyResponse):
		return "[Fallback] Empty AI response."
	case errors.Is(err, llm.ErrNotConfigured):
		return "[Fallback] AI service is not configured."
	default:
		return "[Fallback] AI service error: " + err.Error()
	}
}
