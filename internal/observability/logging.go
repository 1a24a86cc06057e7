// Package observability provides OpenTelemetry tracing, metrics, and structured logging
// with trace correlation for the English learning backend.
package observability

import (
	"context"
	"os"
	"strings"

	"englishapp/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger with OpenTelemetry context support
type Logger struct {
	*zap.Logger
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// NewLogger creates a new logger writing JSON to stdout, teeing to OTLP when enabled
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	return NewLoggerWithLevel(cfg, zap.InfoLevel)
}

// ParseLevel maps a config log level ("debug", "warn", ...) to a zap level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zap.InfoLevel
	}
	return lvl
}

// NewLoggerWithLevel creates a new logger with the given minimum level
func NewLoggerWithLevel(cfg *config.OpenTelemetryConfig, level zapcore.Level) *Logger {
	if cfg == nil {
		return NewNopLogger()
	}

	// JSON to stdout by default
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.StacktraceKey = "stacktrace"

	// Console encoder for local runs
	if os.Getenv("ENV") == "development" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		zapLogger = zap.NewExample()
	}

	// Without OTLP log export, stdout is the only sink
	if !cfg.EnableLogging || cfg.Endpoint == "" {
		return &Logger{Logger: zapLogger}
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		// Log the error but continue with stdout logging
		zapLogger.Error("Failed to create otel resource", zap.Error(err))
		return &Logger{Logger: zapLogger}
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}
	exporter, err := otlploggrpc.New(context.Background(), opts...)
	if err != nil {
		zapLogger.Error("Failed to create OTLP log exporter", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: zapLogger}
	}

	// Batch records to the collector and tee them with stdout
	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)
	otelCore := otelzap.NewCore("englishapp", otelzap.WithLoggerProvider(provider))

	zapLogger = zap.New(zapcore.NewTee(zapLogger.Core(), otelCore))
	zapLogger.Info("OTLP logging configured", zap.String("endpoint", cfg.Endpoint))

	return &Logger{Logger: zapLogger}
}

// Debug logs a debug message with context
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.DebugLevel, msg, fields...)
}

// Info logs an info message with context
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.InfoLevel, msg, fields...)
}

// Warn logs a warning message with context
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.WarnLevel, msg, fields...)
}

// Error logs an error message with context
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	allFields := mergeFields(fields...)
	if err != nil {
		allFields["error"] = err.Error()
	}
	l.logWithContext(ctx, zap.ErrorLevel, msg, allFields)
}

// logWithContext adds trace_id/span_id from the active span before emitting the entry
func (l *Logger) logWithContext(ctx context.Context, level zapcore.Level, msg string, fields ...map[string]interface{}) {
	allFields := mergeFields(fields...)

	// Add trace context if available
	if ctx != nil {
		if spanContext := trace.SpanContextFromContext(ctx); spanContext.IsValid() {
			allFields["trace_id"] = spanContext.TraceID().String()
			allFields["span_id"] = spanContext.SpanID().String()
		}
	}

	zapFields := make([]zap.Field, 0, len(allFields))
	for k, v := range allFields {
		zapFields = append(zapFields, zap.Any(k, v))
	}

	// Check first so disabled levels skip the write
	if ce := l.Logger.Check(level, msg); ce != nil {
		ce.Write(zapFields...)
	}
}

// mergeFields copies all field maps into a fresh map so callers' maps are never mutated
func mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}
	return merged
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
