// Package tracing installs the process-wide OpenTelemetry tracer provider
// used by the dispatch trace observer.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/goclaw/sigslot/config"
	"github.com/goclaw/sigslot/pkg/logger"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

var exportFailures atomic.Uint64

// ExportFailures returns the number of span batches the exporter failed to
// deliver since process start.
func ExportFailures() uint64 {
	return exportFailures.Load()
}

var reportExporterFailure = func(err error, exporter, endpoint string, spanCount int) {
	logger.Warn("span export failed",
		"error", err,
		"exporter", exporter,
		"endpoint", endpoint,
		"span_count", spanCount,
	)
}

var newOTLPExporter = func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("tracing endpoint cannot be empty")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// quietExporter swallows delivery errors so that a collector outage never
// surfaces as a broadcast failure; each failure is counted and reported.
type quietExporter struct {
	sdktrace.SpanExporter
	kind     string
	endpoint string
}

func (e *quietExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.SpanExporter.ExportSpans(ctx, spans); err != nil {
		exportFailures.Add(1)
		reportExporterFailure(err, e.kind, e.endpoint, len(spans))
	}
	return nil
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Init installs a tracer provider for app according to cfg. When tracing is
// disabled a no-op provider is installed and the returned ShutdownFunc does
// nothing.
func Init(ctx context.Context, cfg config.TracingConfig, app config.AppConfig) (ShutdownFunc, error) {
	installPropagator()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	switch {
	case strings.TrimSpace(cfg.Exporter) == "":
		return nil, errors.New("tracing exporter cannot be empty")
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("tracing endpoint cannot be empty")
	case cfg.Timeout <= 0:
		return nil, errors.New("tracing timeout must be > 0")
	}

	exp, err := newOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}
	exp = &quietExporter{
		SpanExporter: exp,
		kind:         strings.ToLower(strings.TrimSpace(cfg.Exporter)),
		endpoint:     normalizeEndpoint(cfg.Endpoint),
	}

	attrs := []resource.Option{resource.WithAttributes(
		semconv.ServiceName(app.Name),
		semconv.ServiceVersion(app.Version),
	)}
	if app.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentName(app.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(shutdownCtx context.Context) error {
		if err := tp.ForceFlush(shutdownCtx); err != nil {
			_ = tp.Shutdown(shutdownCtx)
			return fmt.Errorf("force flush tracing provider: %w", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown tracing provider: %w", err)
		}
		return nil
	}, nil
}

func selectSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

// normalizeEndpoint accepts host:port or a URL and returns host:port.
func normalizeEndpoint(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Host
}
