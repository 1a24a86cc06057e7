package llm

import (
	"context"
	"sync"
)

// MockResponse is a canned answer for MockProvider
type MockResponse struct {
	Text string
	Err  error
}

// MockProvider returns canned responses in FIFO order and records every request
type MockProvider struct {
	mu        sync.Mutex
	name      string
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned responses
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{name: "mock", responses: responses}
}

// Complete returns the next canned response, or ProviderUnavailableError once the queue is empty
func (m *MockProvider) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		return "", &ProviderUnavailableError{Provider: m.name}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return "", resp.Err
	}
	if resp.Text == "" {
		return "", ErrEmptyResponse
	}
	return resp.Text, nil
}

// Name returns "mock"
func (m *MockProvider) Name() string { return m.name }

// AddResponse appends a canned response to the queue
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Complete calls made
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request
func (m *MockProvider) LastCall() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}
