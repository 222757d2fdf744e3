// Package telemetry wires OpenTelemetry tracing for the gateway.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Option configures the tracer provider.
type Option func(*settings)

type settings struct {
	writer         io.Writer
	serviceVersion string
	sampleRatio    float64
}

// WithWriter redirects exporter output, for example to a trace file instead
// of stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writer = w
	}
}

// WithServiceVersion attaches a service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(s *settings) {
		s.serviceVersion = version
	}
}

// WithSampleRatio samples the given fraction of traces instead of all of
// them. Values outside (0, 1) keep the always-on default.
func WithSampleRatio(ratio float64) Option {
	return func(s *settings) {
		s.sampleRatio = ratio
	}
}

// InitTracer installs a global tracer provider backed by the stdout trace
// exporter and returns its shutdown function. Spans cover the HTTP surface
// through the otelhttp middleware.
func InitTracer(serviceName string, logger *slog.Logger, opts ...Option) (func(context.Context) error, error) {
	cfg := settings{writer: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.writer),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	attrs := resource.NewWithAttributes("", semconv.ServiceName(serviceName))
	if cfg.serviceVersion != "" {
		attrs = resource.NewWithAttributes("",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.serviceVersion),
		)
	}
	res, err := resource.Merge(resource.Default(), attrs)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.sampleRatio > 0 && cfg.sampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.sampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", serviceName),
		slog.String("version", cfg.serviceVersion))

	return tp.Shutdown, nil
}
