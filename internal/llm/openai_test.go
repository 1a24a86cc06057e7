package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{
		Name:    "groq",
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "llama-3.3-70b-versatile",
	})
	require.NoError(t, err)
	return p
}

func writeChatCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "llama-3.3-70b-versatile",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}))
}

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var captured map[string]any
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeChatCompletion(t, w, "  {\"questions\": []}  ")
	})

	text, err := p.Complete(context.Background(), Request{
		System:      "system prompt",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}, {Role: RoleAssistant, Content: "hi"}},
		MaxTokens:   300,
		Temperature: 0.9,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"questions": []}`, text)
	assert.Equal(t, "groq", p.Name())

	assert.Equal(t, "llama-3.3-70b-versatile", captured["model"])
	assert.EqualValues(t, 300, captured["max_tokens"])
	assert.InDelta(t, 0.9, captured["temperature"], 0.0001)
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, "assistant", messages[2].(map[string]any)["role"])
}

func TestOpenAIProvider_EmptyContent(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeChatCompletion(t, w, "   ")
	})

	_, err := p.Complete(context.Background(), UserPrompt("", "hello"))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProvider_UpstreamError(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`))
	})

	_, err := p.Complete(context.Background(), UserPrompt("", "hello"))
	require.Error(t, err)

	upErr, ok := AsUpstream(err)
	require.True(t, ok, "expected UpstreamError, got %T", err)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Equal(t, "groq", upErr.Provider)
	assert.Contains(t, upErr.Message, "Rate limit reached")
}

func TestOpenAIProvider_NonJSONErrorBody(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	})

	_, err := p.Complete(context.Background(), UserPrompt("", "hello"))
	upErr, ok := AsUpstream(err)
	require.True(t, ok, "expected UpstreamError, got %T", err)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, UserPrompt("", "hello"))
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
	assert.False(t, errors.Is(err, ErrEmptyResponse))
}
