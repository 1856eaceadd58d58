// Package telemetry installs the OpenTelemetry trace and metric providers
// used by the command line tool. Library packages only touch the global
// otel API, so they emit nothing until Init is called.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
	ErrNilContext      = errors.New("telemetry: nil context")
)

type Config struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`

	// TraceExporter selects the trace exporter: "stdout" or "none".
	TraceExporter string `json:"trace_exporter"`

	// MetricExporter selects the metric exporter: "stdout", "prometheus" or "none".
	MetricExporter string `json:"metric_exporter"`

	// PrometheusFile receives the metrics in Prometheus text format at
	// shutdown, for the node exporter textfile collector.
	PrometheusFile string `json:"prometheus_file"`

	// Writer receives stdout exports, os.Stderr when nil.
	Writer io.Writer `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "femassemble",
		ServiceVersion: "0.1.0",
		TraceExporter:  "none",
		MetricExporter: "none",
	}
}

// Init sets the global providers. The returned shutdown flushes every
// exporter and must be called before exit.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceExporter != "none" && cfg.TraceExporter != "" {
		var tp *trace.TracerProvider
		if tp, err = initTracer(cfg, res); err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != "none" && cfg.MetricExporter != "" {
		var (
			mp    *metric.MeterProvider
			flush func(context.Context) error
		)
		if mp, flush, err = initMeter(cfg, res); err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		if flush != nil {
			shutdownFuncs = append(shutdownFuncs, flush)
		}
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}
	return shutdown, nil
}

func initTracer(cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var (
		exporter trace.SpanExporter
		err      error
	)
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(cfg.Writer), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	), nil
}

// initMeter returns the provider and, for the prometheus exporter, a flush
// that writes the textfile while the collector is still registered.
func initMeter(cfg Config, res *resource.Resource) (mp *metric.MeterProvider, flush func(context.Context) error, err error) {
	switch cfg.MetricExporter {
	case "stdout":
		var exporter metric.Exporter
		if exporter, err = stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer), stdoutmetric.WithPrettyPrint()); err != nil {
			return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		mp = metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		)
	case "prometheus":
		if cfg.PrometheusFile == "" {
			return nil, nil, fmt.Errorf("%w: prometheus exporter needs a file", ErrUnknownExporter)
		}
		var (
			reg      = prometheus.NewRegistry()
			exporter *promexporter.Exporter
		)
		if exporter, err = promexporter.New(promexporter.WithRegisterer(reg)); err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp = metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		)
		flush = func(context.Context) error {
			return prometheus.WriteToTextfile(cfg.PrometheusFile, reg)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
	return
}
