package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"schoolpulse/internal/config"
)

// InstrumentationName names the tracer and meter used across the application
const InstrumentationName = "schoolpulse"

// Telemetry holds the OpenTelemetry providers and the Prometheus scrape handler.
// Unconfigured signals fall back to no-op implementations, so callers never nil-check.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	MetricsHandler http.Handler
	logger         *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics according to cfg
func InitializeTelemetry(cfg config.TelemetryConfig, version string, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
		attribute.String("service.instance.id", instanceID()),
	)

	tel := &Telemetry{
		Tracer:         otel.Tracer(InstrumentationName),
		Meter:          noop.NewMeterProvider().Meter(InstrumentationName),
		MetricsHandler: http.NotFoundHandler(),
		logger:         logger,
	}

	if err := tel.initTracing(cfg, version, res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.MetricsEnabled {
		if err := tel.initMetrics(version, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	return tel, nil
}

func (t *Telemetry) initTracing(cfg config.TelemetryConfig, version string, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "", "none":
		return nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.TracerProvider = tp
	t.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(version))
	otel.SetTracerProvider(tp)
	return nil
}

// initMetrics uses a private Prometheus registry so repeated initialization never collides
func (t *Telemetry) initMetrics(version string, res *resource.Resource) error {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.MeterProvider = mp
	t.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(version))
	t.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	otel.SetMeterProvider(mp)
	return nil
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "telemetry shutdown complete")
	return nil
}

// CatalogMetrics records ingestion activity
type CatalogMetrics struct {
	Ingestions        metric.Int64Counter
	IngestionDuration metric.Float64Histogram
	Entities          metric.Int64Gauge
	SnapshotWrites    metric.Int64Counter
}

// NewCatalogMetrics creates the ingestion instruments on meter
func NewCatalogMetrics(meter metric.Meter) (*CatalogMetrics, error) {
	ingestions, err := meter.Int64Counter(
		"catalog_ingestions",
		metric.WithDescription("Workbook ingestions by source and outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"catalog_ingestion_duration",
		metric.WithDescription("Time spent decoding and building a catalog"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	entities, err := meter.Int64Gauge(
		"catalog_entities",
		metric.WithDescription("Entities in the published catalog"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter(
		"catalog_snapshot_writes",
		metric.WithDescription("Snapshot store writes by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &CatalogMetrics{
		Ingestions:        ingestions,
		IngestionDuration: duration,
		Entities:          entities,
		SnapshotWrites:    writes,
	}, nil
}

// RecordIngestion records one ingestion attempt. status is "success" or "failure".
func (m *CatalogMetrics) RecordIngestion(ctx context.Context, source, status string, d time.Duration, entities int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	m.Ingestions.Add(ctx, 1, attrs)
	m.IngestionDuration.Record(ctx, d.Seconds(), attrs)
	if status == "success" {
		m.Entities.Record(ctx, int64(entities))
	}
}

// RecordSnapshotWrite records the outcome of persisting a workbook
func (m *CatalogMetrics) RecordSnapshotWrite(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.SnapshotWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// HTTPMetrics records request counts and latency
type HTTPMetrics struct {
	Requests        metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ActiveRequests  metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the HTTP instruments on meter
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requests, err := meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http_request_duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{Requests: requests, RequestDuration: duration, ActiveRequests: active}, nil
}

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext returns the OpenTelemetry trace id of the active span, if any
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
