package observability

import (
	"context"
	"errors"

	"englishapp/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"
)

// Providers groups what SetupObservability created so the caller can flush it on shutdown
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Logger         *Logger
}

// SetupObservability initializes tracing, metrics, and logging for a service
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string, level zapcore.Level) (result0 *Providers, err error) {
	// Binaries share one config file but report under their own name
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	p := &Providers{Logger: NewLoggerWithLevel(cfg, level)}

	// Propagation is always installed so inbound trace headers are honoured
	InitTracing(cfg)

	// Standard OpenTelemetry SDK with OTLP exporter
	if cfg.EnableTracing {
		tp, err := InitStandardTracing(cfg)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		p.TracerProvider = tp
		// Initialize the global tracer against the new provider
		InitGlobalTracer()
		p.Logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{"service_name": cfg.ServiceName, "protocol": cfg.Protocol})
	}

	// Meter provider backs the llm.requests and llm.duration instruments
	if cfg.EnableMetrics {
		mp, err := InitMetrics(cfg)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		p.MeterProvider = mp
		p.Logger.Info(context.Background(), "Metrics enabled", map[string]interface{}{"service_name": cfg.ServiceName})
	}

	return p, nil
}

// Shutdown flushes exporters and the logger
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	if p.Logger != nil {
		// stdout sync fails on some terminals; not worth reporting
		_ = p.Logger.Sync()
	}
	return errors.Join(errs...)
}
