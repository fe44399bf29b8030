package tracing

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

const (
	defaultServiceName = "crypto-sentiment"
	defaultEndpoint    = "localhost:4317"
)

// Options selects whether spans leave the process and how they are labelled.
type Options struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
}

func (o Options) withDefaults() Options {
	if o.ServiceName == "" {
		o.ServiceName = defaultServiceName
	}
	if o.Endpoint == "" {
		o.Endpoint = defaultEndpoint
	}
	return o
}

var newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
}

// InitTracer installs a global provider. Spans are exported over OTLP gRPC
// only when opts.Enabled; otherwise they are recorded and dropped.
func InitTracer(ctx context.Context, opts Options) (*sdktrace.TracerProvider, trace.Tracer, error) {
	opts = opts.withDefaults()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	if !opts.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		return tp, tp.Tracer(opts.ServiceName), nil
	}

	exporter, err := newTraceExporter(ctx, opts.Endpoint)
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

	return tp, tp.Tracer(opts.ServiceName), nil
}
