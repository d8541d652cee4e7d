package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kenneth/pinenut/internal/config"
)

// InitTracing installs a global TracerProvider matching cfg, so the spans
// internal/extract already creates via otel.Tracer actually go somewhere instead of being discarded by the SDK's default
// no-op provider. The returned shutdown func flushes and closes the
// exporter; callers should defer it.
func InitTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	switch cfg.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		return initWithExporter(ctx, cfg, func() (sdktrace.SpanExporter, error) {
			return stdouttrace.New(stdouttrace.WithPrettyPrint())
		})
	case "otlp":
		return initWithExporter(ctx, cfg, func() (sdktrace.SpanExporter, error) {
			return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
		})
	case "jaeger":
		// The jaeger exporter is deprecated upstream in favor of OTLP, but
		// the teacher's go.mod carries it directly, so a collector-endpoint
		// path stays available for deployments still running a Jaeger
		// collector rather than an OTLP-native backend.
		return initWithExporter(ctx, cfg, func() (sdktrace.SpanExporter, error) {
			return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.OTLPEndpoint)))
		})
	default:
		return nil, fmt.Errorf("telemetry: unknown tracing exporter %q", cfg.Exporter)
	}
}

func initWithExporter(ctx context.Context, cfg config.TracingConfig, newExporter func() (sdktrace.SpanExporter, error)) (func(context.Context) error, error) {
	exp, err := newExporter()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	frac := cfg.SampleFraction
	if frac <= 0 {
		frac = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(frac)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
