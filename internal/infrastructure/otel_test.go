package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func testOTelConfig() *OTelConfig {
	reg := prometheus.NewRegistry()
	cfg := DefaultOTelConfig()
	cfg.Registerer = reg
	cfg.Gatherer = reg
	return cfg
}

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := testOTelConfig()
	cfg.TraceExporter = "stdout"
	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabledExportersUseNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    ServiceName,
		TraceExporter:  "none",
		MetricExporter: "none",
	}, logger)
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	_, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestOTelUnsupportedExporters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		config *OTelConfig
	}{
		{"unknown trace exporter", &OTelConfig{TraceExporter: "jaeger", MetricExporter: "none"}},
		{"unknown metric exporter", &OTelConfig{TraceExporter: "none", MetricExporter: "statsd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitializeOTel(tt.config, logger)
			assert.Error(t, err)
		})
	}
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testOTelConfig()
	cfg.TraceExporter = "stdout"
	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	assert.True(t, span.SpanContext().HasTraceID())

	SetSpanAttributes(ctx, map[string]interface{}{
		"string_attr": "value",
		"int_attr":    42,
		"float_attr":  3.14,
		"bool_attr":   true,
	})
	RecordError(ctx, assert.AnError)
	assert.True(t, span.IsRecording())
}

func TestDashboardMetricsExported(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateDashboardMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordLoad(ctx, 20*time.Millisecond, 12, nil)
	metrics.RecordSkipped(ctx, "date", 2)
	metrics.RecordRender(ctx, "time_series")
	metrics.RecordRecompute(ctx, "1y", 5*time.Millisecond)
	metrics.RecordStale(ctx, "range")
	metrics.RecordCoalesced(ctx)
	metrics.RecordExport(ctx, "all")

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dashboard_loads_total")
	assert.Contains(t, string(body), "dashboard_records_skipped_total")
	assert.Contains(t, string(body), "dashboard_renders_total")
}

func TestNilDashboardMetricsAreSafe(t *testing.T) {
	var m *DashboardMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordLoad(ctx, time.Second, 1, assert.AnError)
		m.RecordRender(ctx, "x")
		m.RecordStale(ctx, "range")
		m.RecordExport(ctx, "all")
	})
	assert.NotNil(t, NoopDashboardMetrics())
}
