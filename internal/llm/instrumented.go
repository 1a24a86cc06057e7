package llm

import (
	"context"
	"errors"
	"time"

	"englishapp/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "englishapp/llm"

// InstrumentedProvider records a span, metrics and a log line around every completion
type InstrumentedProvider struct {
	next     Provider
	purpose  string
	logger   *observability.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// Instrument wraps p. purpose names the feature the provider serves, e.g. "chat" or "quiz".
func Instrument(p Provider, purpose string, logger *observability.Logger) *InstrumentedProvider {
	meter := otel.Meter(meterName)
	// Instrument creation only fails on invalid names; the returned no-op instruments stay usable.
	requests, _ := meter.Int64Counter("llm.requests",
		metric.WithDescription("Number of completion requests sent to LLM providers"))
	duration, _ := meter.Float64Histogram("llm.duration",
		metric.WithDescription("Completion latency"),
		metric.WithUnit("ms"))

	return &InstrumentedProvider{
		next:     p,
		purpose:  purpose,
		logger:   logger,
		requests: requests,
		duration: duration,
	}
}

// Name returns the wrapped provider's name
func (p *InstrumentedProvider) Name() string { return p.next.Name() }

// Complete delegates to the wrapped provider
func (p *InstrumentedProvider) Complete(ctx context.Context, req Request) (result0 string, err error) {
	ctx, span := observability.TraceLLMFunction(ctx, "complete",
		observability.AttributeProvider(p.next.Name()),
		attribute.String("llm.purpose", p.purpose),
		attribute.Int("llm.max_tokens", req.MaxTokens),
		attribute.Float64("llm.temperature", req.Temperature),
		attribute.Bool("llm.json_mode", req.JSONMode),
	)
	defer observability.FinishSpan(span, &err)

	start := time.Now()
	result0, err = p.next.Complete(ctx, req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	outcome := outcomeOf(err)
	attrs := metric.WithAttributes(
		attribute.String("provider", p.next.Name()),
		attribute.String("purpose", p.purpose),
		attribute.String("outcome", outcome),
	)
	p.requests.Add(ctx, 1, attrs)
	p.duration.Record(ctx, elapsed, attrs)

	fields := map[string]interface{}{
		"provider":    p.next.Name(),
		"purpose":     p.purpose,
		"outcome":     outcome,
		"duration_ms": elapsed,
	}
	if err != nil {
		p.logger.Warn(ctx, "LLM completion failed", fields, map[string]interface{}{"error": err.Error()})
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(result0)))
	p.logger.Debug(ctx, "LLM completion succeeded", fields)
	return result0, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	}
	if _, ok := AsUpstream(err); ok {
		return "upstream_error"
	}
	return "error"
}
