package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
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
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"wqdash/internal/config"
)

const (
	ServiceName    = "wqdash"
	ServiceVersion = config.AppVersion
	MeterName      = "wqdash"
	TracerName     = "wqdash"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
	// Registerer receives the Prometheus collectors. Nil uses the default registry.
	Registerer prometheus.Registerer
	// Gatherer backs the /metrics handler. Nil uses the default gatherer.
	Gatherer prometheus.Gatherer
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// OTelConfigFrom maps the telemetry section of the application config
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    cfg.Environment,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		SampleRatio:    cfg.SampleRatio,
	}
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes OpenTelemetry tracing and metrics. Disabled
// exporters leave no-op tracer and meter in place so callers never nil-check.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	res := createResource(cfg)

	providers := &OTelProviders{
		Tracer: tracenoop.NewTracerProvider().Tracer(TracerName),
		Meter:  noop.NewMeterProvider().Meter(MeterName),
		Logger: logger,
	}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(TracerName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		opts := []otelprom.Option{}
		if cfg.Registerer != nil {
			opts = append(opts, otelprom.WithRegisterer(cfg.Registerer))
		}
		exporter, err := otelprom.New(opts...)
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		if cfg.Gatherer != nil {
			providers.PrometheusHTTP = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
		} else {
			providers.PrometheusHTTP = promhttp.Handler()
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// DashboardMetrics holds the application-specific instruments
type DashboardMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Artifact loading
	LoadsTotal     metric.Int64Counter
	LoadDuration   metric.Float64Histogram
	RecordsLoaded  metric.Int64Gauge
	RecordsSkipped metric.Int64Counter

	// Rendering
	RendersTotal    metric.Int64Counter
	RenderDuration  metric.Float64Histogram
	StaleResponses  metric.Int64Counter
	CoalescedRanges metric.Int64Counter
	ExportsTotal    metric.Int64Counter
}

// CreateDashboardMetrics creates the dashboard instruments on meter
func CreateDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	m := &DashboardMetrics{}
	var err error
	var errs []error
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	collect(err)
	m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"))
	collect(err)
	m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of active HTTP requests"))
	collect(err)

	m.LoadsTotal, err = meter.Int64Counter("dashboard_loads_total",
		metric.WithDescription("Artifact load attempts by outcome"))
	collect(err)
	m.LoadDuration, err = meter.Float64Histogram("dashboard_load_duration_seconds",
		metric.WithDescription("Artifact load duration in seconds"),
		metric.WithUnit("s"))
	collect(err)
	m.RecordsLoaded, err = meter.Int64Gauge("dashboard_records_loaded",
		metric.WithDescription("Records in the working set"))
	collect(err)
	m.RecordsSkipped, err = meter.Int64Counter("dashboard_records_skipped_total",
		metric.WithDescription("Rows skipped while parsing, by reason"))
	collect(err)

	m.RendersTotal, err = meter.Int64Counter("dashboard_renders_total",
		metric.WithDescription("Chart renders by target"))
	collect(err)
	m.RenderDuration, err = meter.Float64Histogram("dashboard_render_duration_seconds",
		metric.WithDescription("Full dashboard recompute and render duration"),
		metric.WithUnit("s"))
	collect(err)
	m.StaleResponses, err = meter.Int64Counter("dashboard_stale_responses_total",
		metric.WithDescription("Results discarded because a newer request superseded them"))
	collect(err)
	m.CoalescedRanges, err = meter.Int64Counter("dashboard_coalesced_range_changes_total",
		metric.WithDescription("Time-range changes replaced by a newer pending change"))
	collect(err)
	m.ExportsTotal, err = meter.Int64Counter("dashboard_exports_total",
		metric.WithDescription("CSV exports generated"))
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// NoopDashboardMetrics returns instruments that record nothing
func NoopDashboardMetrics() *DashboardMetrics {
	m, _ := CreateDashboardMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordLoad records one artifact load attempt
func (m *DashboardMetrics) RecordLoad(ctx context.Context, duration time.Duration, records int, err error) {
	if m == nil {
		return
	}
	status := attribute.String("status", "success")
	if err != nil {
		status = attribute.String("status", "failure")
	}
	m.LoadsTotal.Add(ctx, 1, metric.WithAttributes(status))
	m.LoadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(status))
	if err == nil {
		m.RecordsLoaded.Record(ctx, int64(records))
	}
}

// RecordSkipped records rows dropped by the parser
func (m *DashboardMetrics) RecordSkipped(ctx context.Context, reason string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.RecordsSkipped.Add(ctx, int64(count), metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRender records one chart render against a target
func (m *DashboardMetrics) RecordRender(ctx context.Context, target string) {
	if m == nil {
		return
	}
	m.RendersTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

// RecordRecompute records one full recompute for a time range
func (m *DashboardMetrics) RecordRecompute(ctx context.Context, timeRange string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("range", timeRange)))
}

// RecordStale records a discarded superseded result
func (m *DashboardMetrics) RecordStale(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.StaleResponses.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordCoalesced records a pending range change dropped for a newer one
func (m *DashboardMetrics) RecordCoalesced(ctx context.Context) {
	if m == nil {
		return
	}
	m.CoalescedRanges.Add(ctx, 1)
}

// RecordExport records one CSV export
func (m *DashboardMetrics) RecordExport(ctx context.Context, timeRange string) {
	if m == nil {
		return
	}
	m.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("range", timeRange)))
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %w", errors.Join(errs...))
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}
