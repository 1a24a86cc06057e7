package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrEmptyResponse indicates the provider answered with no usable text
	ErrEmptyResponse = errors.New("empty completion")
	// ErrNotConfigured indicates the provider has no API key
	ErrNotConfigured = errors.New("provider is not configured")
)

// UpstreamError is a non-2xx answer from a provider
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Snippet returns at most n runes of the upstream message
func (e *UpstreamError) Snippet(n int) string {
	r := []rune(e.Message)
	if len(r) <= n {
		return e.Message
	}
	return string(r[:n])
}

// ProviderUnavailableError indicates the provider could not be reached at all
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
	}
	return e.Provider + " unavailable"
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// IsTimeout reports whether err was caused by a deadline
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// AsUpstream returns the UpstreamError in err's chain, if any
func AsUpstream(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}

// classify turns a transport-level failure into a typed error
func classify(provider string, err error) error {
	if IsTimeout(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return &ProviderUnavailableError{Provider: provider, Err: err}
}
