package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig enables OTLP/HTTP trace export. Endpoint defaults to the
// exporter's OTEL_EXPORTER_OTLP_* environment handling.
type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
	Version  string
	Commit   string
}

// TelemetryShutdown flushes pending spans and restores the previous otel globals.
type TelemetryShutdown func(ctx context.Context) error

// otelGlobals is the process-wide otel state SetupTelemetry replaces.
type otelGlobals struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	errHandler otel.ErrorHandler
}

func captureGlobals() otelGlobals {
	return otelGlobals{
		provider:   otel.GetTracerProvider(),
		propagator: otel.GetTextMapPropagator(),
		errHandler: otel.GetErrorHandler(),
	}
}

func (g otelGlobals) restore() {
	otel.SetTracerProvider(g.provider)
	otel.SetTextMapPropagator(g.propagator)
	otel.SetErrorHandler(g.errHandler)
}

// SetupTelemetry installs a batching OTLP tracer provider. A nil or disabled
// config leaves the globals alone and returns a no-op shutdown.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(serviceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithCompression(otlptracehttp.GzipCompression)}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otel exporter: %w", err)
	}

	prev := captureGlobals()
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	// Export failures must not interleave with command output.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))

	return func(shutdownCtx context.Context) error {
		defer prev.restore()

		if err := provider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}

		return nil
	}, nil
}

func serviceAttributes(cfg *TelemetryConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", envOr("OTEL_SERVICE_NAME", "presence")),
		attribute.String("service.namespace", "profilecard"),
		attribute.String("service.version", cfg.Version),
		attribute.String("deployment.environment", envOr("OTEL_ENVIRONMENT", "development")),
	}

	if cfg.Commit != "" {
		attrs = append(attrs, attribute.String("service.commit", cfg.Commit))
	}

	return attrs
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsTelemetryEnabled reads PRESENCE_OTEL_ENABLED, then OTEL_ENABLED. The
// first one that is set decides.
func IsTelemetryEnabled() bool {
	for _, name := range []string{"PRESENCE_OTEL_ENABLED", "OTEL_ENABLED"} {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
		case "":
			continue
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}

	return false
}

// FailSpan records err on span and sets an error status.
func FailSpan(span trace.Span, err error, description string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}
