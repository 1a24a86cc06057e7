// Package llm wraps the chat-completion providers used by the application behind a single interface.
package llm

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Provider sends one completion request and returns the generated text
type Provider interface {
	// Complete returns the trimmed text of the first completion choice.
	// An empty completion is reported as ErrEmptyResponse.
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the provider in logs, spans and metrics.
	Name() string
}

// Request describes one completion call
type Request struct {
	// System is the system prompt
	System string

	// Messages is the conversation, oldest first
	Messages []Message

	MaxTokens   int
	Temperature float64

	// JSONMode asks the provider for a JSON object response where supported
	JSONMode bool
}

// Message is one conversation turn
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// newTracedHTTPClient returns an HTTP client whose requests are recorded as client spans
func newTracedHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
