package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wqdash/internal/charts"
	"wqdash/internal/dashboard"
	"wqdash/internal/services"
	"wqdash/internal/shared/testutil"
	apiv1 "wqdash/pkg/contracts/api/v1"
	"wqdash/pkg/contracts/domain"
)

type stubPhase struct{ phase dashboard.Phase }

func (s *stubPhase) Phase() dashboard.Phase { return s.phase }

func TestHealthEndpoints(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	phase := &stubPhase{phase: dashboard.PhaseLoading}
	svc := services.NewHealthService("1.0.0", "", nil, phase, nil, logger)

	r := chi.NewRouter()
	NewHealthHandler(svc, logger).Register(r)

	rec := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "not_ready", status.Status)

	phase.phase = dashboard.PhaseReady
	rec = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wqdash_test_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	r := chi.NewRouter()
	NewMetricsHandler(reg).Register(r)

	rec := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wqdash_test_total 1")
}

type stubIndexSource struct{}

func (stubIndexSource) State() apiv1.StateResponse {
	return apiv1.StateResponse{Phase: "ready", Range: domain.RangeOneYear}
}

func (stubIndexSource) Ranges() []apiv1.RangeOption {
	opts := make([]apiv1.RangeOption, 0, 4)
	for _, tr := range domain.TimeRanges() {
		opts = append(opts, apiv1.RangeOption{Value: tr, Label: tr.Label(), Selected: tr == domain.RangeOneYear})
	}
	return opts
}

func TestServeIndex(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()
	ServeIndex(stubIndexSource{}, logger)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="1y" selected>`)
	for _, target := range charts.Targets() {
		assert.Contains(t, body, "/api/v1/dashboard/charts/"+target+".png")
	}
	assert.Contains(t, body, `src="/static/dashboard.js"`)
	assert.NotContains(t, body, "<script>")

	rec = httptest.NewRecorder()
	ServeScript(rec, httptest.NewRequest(http.MethodGet, "/static/dashboard.js", nil))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "range:set")
}

func TestServeAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "annual_trends.png"), []byte("\x89PNG\r\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	h := ServeAssets("/assets/", dir)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/assets/annual_trends.png", http.StatusOK},
		{"/assets/missing.png", http.StatusNotFound},
		{"/assets/", http.StatusNotFound},
		{"/assets/sub", http.StatusNotFound},
		{"/assets/../secret.txt", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.path, "/assets/"), func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
