// Package observability builds the tracer and meter providers of the CLI.
//
// Exporters follow the standard OTEL_EXPORTER_OTLP_* variables. Without an
// OTLP endpoint both signals are printed to stderr, which keeps command output
// on stdout clean. Everything buffered is flushed by the returned shutdown.
package observability

import (
	"context"
	"errors"
	"fmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"io"
	"log/slog"
	"os"
	"quickcommerce/internal/config"
	"strings"
)

// Instruments bundles the tracer and meter providers of the process.
type Instruments struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type Option func(*options)

type options struct {
	console io.Writer
}

// WithConsoleWriter redirects the console exporters, stderr by default.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// Init configures both signals. Disabled telemetry yields noop providers and
// a shutdown that does nothing.
func Init(ctx context.Context, cfg config.TelemetryConfig, env string, log *slog.Logger, opts ...Option) (*Instruments, func(context.Context) error, error) {
	const op = "observability.Init"

	if !cfg.Enabled {
		return &Instruments{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}, func(context.Context) error { return nil }, nil
	}

	o := options{console: os.Stderr}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if log == nil {
		log = slog.Default()
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", env),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: resource: %w", op, err)
	}

	otlp := otlpConfigured()

	spans, err := newSpanExporter(ctx, otlp, o.console)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: span exporter: %w", op, err)
	}
	metrics, err := newMetricExporter(ctx, otlp, o.console)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, nil, fmt.Errorf("%s: metric exporter: %w", op, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spans),
	)
	// The periodic reader also collects once more on shutdown, so a short
	// command still exports its counters.
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Debug("telemetry enabled",
		slog.String("service", cfg.ServiceName),
		slog.Bool("otlp", otlp))

	shutdown := func(ctx context.Context) error {
		// Meters first: a late span from a closing connection is still traced.
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}
	return &Instruments{TracerProvider: tp, MeterProvider: mp}, shutdown, nil
}

func (i *Instruments) Tracer(name string) trace.Tracer {
	if i == nil || i.TracerProvider == nil {
		return otel.Tracer(name)
	}
	return i.TracerProvider.Tracer(name)
}

func (i *Instruments) Meter(name string) metric.Meter {
	if i == nil || i.MeterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(name)
	}
	return i.MeterProvider.Meter(name)
}

// otlpConfigured reports whether any OTLP endpoint is set. The exporters read
// the full URL, scheme included, from the environment themselves.
func otlpConfigured() bool {
	for _, key := range []string{
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
		"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
	} {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			return true
		}
	}
	return false
}

func newSpanExporter(ctx context.Context, otlp bool, console io.Writer) (sdktrace.SpanExporter, error) {
	if otlp {
		return otlptracehttp.New(ctx)
	}
	return stdouttrace.New(stdouttrace.WithWriter(console))
}

func newMetricExporter(ctx context.Context, otlp bool, console io.Writer) (sdkmetric.Exporter, error) {
	if otlp {
		return otlpmetrichttp.New(ctx)
	}
	return stdoutmetric.New(stdoutmetric.WithWriter(console))
}
