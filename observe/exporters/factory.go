// Package exporters builds the OpenTelemetry span exporters and metric
// readers selectable through LIBRARY_TRACING_EXPORTER and
// LIBRARY_METRICS_EXPORTER.
//
// The stdout exporters write to the given writer, or to os.Stderr when it is
// nil, so that command output on stdout stays machine-readable.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names.
const (
	None       = "none"
	Stdout     = "stdout"
	OTLP       = "otlp"
	Prometheus = "prometheus"
)

// TracingNames lists the accepted tracing exporters.
var TracingNames = []string{None, Stdout, OTLP}

// MetricsNames lists the accepted metrics exporters.
var MetricsNames = []string{None, Stdout, OTLP, Prometheus}

var (
	// ErrUnknownExporter is returned for a name outside TracingNames or
	// MetricsNames.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrNoEndpoint is returned for the otlp exporter when no collector
	// endpoint is set in the environment.
	ErrNoEndpoint = errors.New("exporters: otlp endpoint not configured")
)

// ValidTracing reports whether name selects a tracing exporter. The empty
// name means none.
func ValidTracing(name string) bool {
	return name == "" || slices.Contains(TracingNames, name)
}

// ValidMetrics reports whether name selects a metrics exporter. The empty
// name means none.
func ValidMetrics(name string) bool {
	return name == "" || slices.Contains(MetricsNames, name)
}

// NewTracingExporter creates the span exporter called name. It returns a nil
// exporter for none.
func NewTracingExporter(ctx context.Context, name string, w io.Writer) (sdktrace.SpanExporter, error) {
	switch name {
	case None, "":
		return nil, nil
	case Stdout:
		return stdouttrace.New(stdouttrace.WithWriter(output(w)))
	case OTLP:
		if err := requireEndpoint("TRACES"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	default:
		return nil, fmt.Errorf("%w: tracing %q (want %s)", ErrUnknownExporter, name, strings.Join(TracingNames, "|"))
	}
}

// NewMetricsReader creates the metric reader called name. It returns a nil
// reader for none.
func NewMetricsReader(ctx context.Context, name string, w io.Writer) (sdkmetric.Reader, error) {
	switch name {
	case None, "":
		return nil, nil
	case Stdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(output(w)))
		if err != nil {
			return nil, fmt.Errorf("stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case OTLP:
		if err := requireEndpoint("METRICS"); err != nil {
			return nil, err
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("otlp metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case Prometheus:
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("%w: metrics %q (want %s)", ErrUnknownExporter, name, strings.Join(MetricsNames, "|"))
	}
}

func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stderr
	}
	return w
}

// requireEndpoint checks the generic and the per-signal OTLP endpoint
// variables read by the otlp exporters.
func requireEndpoint(signal string) error {
	generic := "OTEL_EXPORTER_OTLP_ENDPOINT"
	specific := "OTEL_EXPORTER_OTLP_" + signal + "_ENDPOINT"
	if os.Getenv(generic) != "" || os.Getenv(specific) != "" {
		return nil
	}
	return fmt.Errorf("%w: set %s or %s", ErrNoEndpoint, generic, specific)
}
