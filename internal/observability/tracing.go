package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is reported as the otel service.name resource attribute.
const ServiceName = "solana-call-tracker"

// TracingConfig configures InitTracer.
type TracingConfig struct {
	Enabled  bool
	Endpoint string // OTLP gRPC collector, host:port
	Version  string
}

// InitTracer installs a global tracer provider. With tracing disabled the
// provider has no exporter, so spans are created but dropped.
// Callers must Shutdown the returned provider.
func InitTracer(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, trace.Tracer, error) {
	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, tp.Tracer(ServiceName), nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, err
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, tp.Tracer(ServiceName), nil
}

// Tracer returns the named tracer from the global provider. Packages use it
// when no tracer was injected.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}
