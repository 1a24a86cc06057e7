package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "englishapp"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a new span named "<serviceName>.<functionName>".
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return GetGlobalTracer().Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceUserFunction starts a new span for a user service function.
func TraceUserFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "user", functionName, attributes...)
}

// TraceDictionaryFunction starts a new span for a dictionary service function.
func TraceDictionaryFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "dictionary", functionName, attributes...)
}

// TraceQuizFunction starts a new span for a quiz service function.
func TraceQuizFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "quiz", functionName, attributes...)
}

// TraceSpeakingFunction starts a new span for a speaking practice function.
func TraceSpeakingFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "speaking", functionName, attributes...)
}

// TraceChatFunction starts a new span for a chat service function.
func TraceChatFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "chat", functionName, attributes...)
}

// TraceLLMFunction starts a new span for an upstream model call.
func TraceLLMFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "llm", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeUserID returns a tracing attribute for a user ID.
func AttributeUserID(id string) attribute.KeyValue {
	return attribute.String("user.id", id)
}

// AttributeUsername returns a tracing attribute for a username.
func AttributeUsername(username string) attribute.KeyValue {
	return attribute.String("user.username", username)
}

// AttributeTopic returns a tracing attribute for a quiz or speaking topic.
func AttributeTopic(topic string) attribute.KeyValue {
	return attribute.String("topic", topic)
}

// AttributeLevel returns a tracing attribute for a level.
func AttributeLevel(level string) attribute.KeyValue {
	return attribute.String("level", level)
}

// AttributeWord returns a tracing attribute for a dictionary word.
func AttributeWord(word string) attribute.KeyValue {
	return attribute.String("dictionary.word", word)
}

// AttributeSessionID returns a tracing attribute for a speaking session.
func AttributeSessionID(id string) attribute.KeyValue {
	return attribute.String("speaking.session_id", id)
}

// AttributeProvider returns a tracing attribute for an upstream model provider.
func AttributeProvider(name string) attribute.KeyValue {
	return attribute.String("llm.provider", name)
}

// AttributeSource returns a tracing attribute for where a response came from.
func AttributeSource(source string) attribute.KeyValue {
	return attribute.String("source", source)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}
