// Package otel configures OpenTelemetry tracing for arena commands.
package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by the battle runner.
const InstrumentationName = "github.com/louisbranch/arena"

// Options controls trace export. Tags are read with the ARENA_ prefix.
type Options struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	// SampleRatio is the fraction of battles traced, in [0, 1].
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// active reports whether spans should be exported at all.
func (o Options) active() bool {
	return o.Enabled && strings.TrimSpace(o.Endpoint) != ""
}

func (o Options) sampler() (sdktrace.Sampler, error) {
	switch {
	case o.SampleRatio < 0 || o.SampleRatio > 1:
		return nil, fmt.Errorf("otel sample ratio %v outside [0, 1]", o.SampleRatio)
	case o.SampleRatio == 1:
		return sdktrace.AlwaysSample(), nil
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio)), nil
}

// Setup registers a global tracer provider exporting to opts.Endpoint over
// OTLP/HTTP and returns its shutdown function, which flushes pending spans.
// Without an endpoint, or when disabled, nothing is registered and shutdown
// is a no-op.
func Setup(ctx context.Context, serviceName string, opts Options) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !opts.active() {
		return noop, nil
	}
	sampler, err := opts.sampler()
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(opts.Endpoint)))
	if err != nil {
		return noop, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Tracer returns the arena tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
