package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wqdash/internal/charts"
	"wqdash/internal/dashboard"
	"wqdash/internal/dataprocessing"
	apierrors "wqdash/internal/errors"
	"wqdash/internal/exporter"
	"wqdash/internal/shared/testutil"
	apiv1 "wqdash/pkg/contracts/api/v1"
	"wqdash/pkg/contracts/domain"
)

// MockDashboardService mocks DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) State() apiv1.StateResponse {
	return m.Called().Get(0).(apiv1.StateResponse)
}

func (m *MockDashboardService) Ranges() []apiv1.RangeOption {
	return m.Called().Get(0).([]apiv1.RangeOption)
}

func (m *MockDashboardService) View() (*dashboard.ViewModel, error) {
	args := m.Called()
	view, _ := args.Get(0).(*dashboard.ViewModel)
	return view, args.Error(1)
}

func (m *MockDashboardService) SetTimeRange(ctx context.Context, raw string) (*dashboard.ViewModel, error) {
	args := m.Called(ctx, raw)
	view, _ := args.Get(0).(*dashboard.ViewModel)
	return view, args.Error(1)
}

func (m *MockDashboardService) Reload(ctx context.Context) (*dashboard.ViewModel, error) {
	args := m.Called(ctx)
	view, _ := args.Get(0).(*dashboard.ViewModel)
	return view, args.Error(1)
}

func (m *MockDashboardService) Chart(target string) (charts.Spec, error) {
	args := m.Called(target)
	return args.Get(0).(charts.Spec), args.Error(1)
}

func (m *MockDashboardService) RenderChartPNG(ctx context.Context, target string, w io.Writer) error {
	args := m.Called(ctx, target, w)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("\x89PNG\r\n"))
	}
	return args.Error(0)
}

func (m *MockDashboardService) Export(ctx context.Context, rangeOverride string, w io.Writer) (string, error) {
	args := m.Called(ctx, rangeOverride, w)
	if args.Error(1) == nil {
		_, _ = io.WriteString(w, "Date,BOD5,NH3N,SS,Complies\n2020-01-01,1.00,0.50,20.00,true\n")
	}
	return args.String(0), args.Error(1)
}

func (m *MockDashboardService) ExportWorkbook(ctx context.Context, rangeOverride string, w io.Writer) (string, error) {
	args := m.Called(ctx, rangeOverride, w)
	if args.Error(1) == nil {
		_, _ = io.WriteString(w, "PK")
	}
	return args.String(0), args.Error(1)
}

func (m *MockDashboardService) Insights() (*dashboard.Insights, error) {
	args := m.Called()
	ins, _ := args.Get(0).(*dashboard.Insights)
	return ins, args.Error(1)
}

func (m *MockDashboardService) Assets(ctx context.Context) ([]apiv1.Asset, error) {
	args := m.Called(ctx)
	assets, _ := args.Get(0).([]apiv1.Asset)
	return assets, args.Error(1)
}

func setupDashboardHandler(t *testing.T) (http.Handler, *MockDashboardService) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := &MockDashboardService{}
	h := NewDashboardHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	return h.Routes(), svc
}

func do(t *testing.T, handler http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem), rec.Body.String())
	return problem
}

func TestGetView(t *testing.T) {
	tests := []struct {
		name       string
		view       *dashboard.ViewModel
		err        error
		wantStatus int
	}{
		{
			name:       "ready",
			view:       &dashboard.ViewModel{RequestID: 3, Range: domain.RangeOneYear, RecordCount: 12},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not ready",
			err:        dashboard.ErrNotReady,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupDashboardHandler(t)
			svc.On("View").Return(tt.view, tt.err).Once()

			rec := do(t, router, http.MethodGet, "/", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.err == nil {
				var got map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "1y", got["range"])
				assert.EqualValues(t, 12, got["record_count"])
			} else {
				problem := decodeProblem(t, rec)
				assert.EqualValues(t, tt.wantStatus, problem["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestGetStateAndRanges(t *testing.T) {
	router, svc := setupDashboardHandler(t)
	svc.On("State").Return(apiv1.StateResponse{Phase: "filtering", RequestID: 9, Range: domain.RangeTwoYears})
	svc.On("Ranges").Return([]apiv1.RangeOption{{Value: domain.RangeAll, Label: "All Data", Selected: true}})

	rec := do(t, router, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state apiv1.StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "filtering", state.Phase)
	assert.Equal(t, uint64(9), state.RequestID)

	rec = do(t, router, http.MethodGet, "/ranges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selected":true`)
}

func TestSetRange(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockDashboardService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "valid range",
			body: `{"range":"2y"}`,
			setup: func(m *MockDashboardService) {
				m.On("SetTimeRange", mock.Anything, "2y").
					Return(&dashboard.ViewModel{Range: domain.RangeTwoYears, RecordCount: 24}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown range fails validation",
			body:       `{"range":"5y"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing range fails validation",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"range":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name: "dashboard not ready",
			body: `{"range":"1y"}`,
			setup: func(m *MockDashboardService) {
				m.On("SetTimeRange", mock.Anything, "1y").Return(nil, dashboard.ErrNotReady).Once()
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupDashboardHandler(t)
			if tt.setup != nil {
				tt.setup(svc)
			}

			rec := do(t, router, http.MethodPut, "/range", strings.NewReader(tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeProblem(t, rec)["error_code"])
			}
			if tt.setup == nil {
				svc.AssertNotCalled(t, "SetTimeRange", mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestReloadEndpoint(t *testing.T) {
	router, svc := setupDashboardHandler(t)
	schemaErr := &dataprocessing.SchemaError{Missing: []string{"NH3N"}}
	svc.On("Reload", mock.Anything).Return(nil, schemaErr).Once()
	svc.On("Reload", mock.Anything).Return(&dashboard.ViewModel{RequestID: 4}, nil).Once()

	rec := do(t, router, http.MethodPost, "/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "NH3N")

	rec = do(t, router, http.MethodPost, "/reload", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetChart(t *testing.T) {
	t.Run("spec as json", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("Chart", charts.TargetCorrelation).Return(charts.Spec{Target: charts.TargetCorrelation, Kind: charts.KindScatter}, nil)

		rec := do(t, router, http.MethodGet, "/charts/correlation", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		assert.Contains(t, rec.Body.String(), `"kind":"scatter"`)
	})

	t.Run("png", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("RenderChartPNG", mock.Anything, charts.TargetPrediction, mock.Anything).Return(nil)

		rec := do(t, router, http.MethodGet, "/charts/prediction.png", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("unknown target", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)

		for _, path := range []string{"/charts/pie", "/charts/pie.png"} {
			rec := do(t, router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusNotFound, rec.Code, path)
		}
		svc.AssertNotCalled(t, "Chart", mock.Anything)
		svc.AssertNotCalled(t, "RenderChartPNG", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("render failure", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("RenderChartPNG", mock.Anything, charts.TargetDistribution, mock.Anything).
			Return(apierrors.NewRenderError(charts.TargetDistribution, errors.New("font missing")))

		rec := do(t, router, http.MethodGet, "/charts/distribution.png", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotEqual(t, "image/png", rec.Header().Get("Content-Type"))
		problem := decodeProblem(t, rec)
		assert.Equal(t, "RENDER_FAILED", problem["error_code"])
		assert.Equal(t, charts.TargetDistribution, problem["target"])
	})
}

func TestExportEndpoint(t *testing.T) {
	t.Run("active range", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("Export", mock.Anything, "", mock.Anything).Return("water_quality_all.csv", nil)

		rec := do(t, router, http.MethodGet, "/export", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="water_quality_all.csv"`, rec.Header().Get("Content-Disposition"))

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "Date,BOD5,NH3N,SS,Complies", lines[0])
	})

	t.Run("range override", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("Export", mock.Anything, "1y", mock.Anything).Return("water_quality_1y.csv", nil)

		rec := do(t, router, http.MethodGet, "/export?range=1Y", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "water_quality_1y.csv")
	})

	t.Run("invalid range", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)

		rec := do(t, router, http.MethodGet, "/export?range=decade", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeProblem(t, rec), "allowed")
		svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("workbook format", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("ExportWorkbook", mock.Anything, "3y", mock.Anything).Return("water_quality_3y.xlsx", nil)

		rec := do(t, router, http.MethodGet, "/export?range=3y&format=xlsx", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, exporter.WorkbookContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "water_quality_3y.xlsx")
		svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown format", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)

		rec := do(t, router, http.MethodGet, "/export?format=pdf", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "ExportWorkbook", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not ready", func(t *testing.T) {
		router, svc := setupDashboardHandler(t)
		svc.On("Export", mock.Anything, "", mock.Anything).Return("", dashboard.ErrNotReady)

		rec := do(t, router, http.MethodGet, "/export", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Empty(t, rec.Header().Get("Content-Disposition"))
	})
}

func TestInsightsAndAssets(t *testing.T) {
	router, svc := setupDashboardHandler(t)
	svc.On("Insights").Return(&dashboard.Insights{RecordCount: 36, Extracts: map[string]string{"overall_compliance": "88.9%"}}, nil)
	svc.On("Assets", mock.Anything).Return([]apiv1.Asset{{Name: "time_series_trends.png", Panel: "time_series", URL: "/assets/time_series_trends.png"}}, nil)

	rec := do(t, router, http.MethodGet, "/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"record_count":36`)

	rec = do(t, router, http.MethodGet, "/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Assets []apiv1.Asset `json:"assets"`
		Count  int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "time_series", body.Assets[0].Panel)
}

func TestAssetsFailure(t *testing.T) {
	router, svc := setupDashboardHandler(t)
	svc.On("Assets", mock.Anything).Return(nil, errors.New("permission denied"))

	rec := do(t, router, http.MethodGet, "/assets", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "FILESYSTEM_ERROR", decodeProblem(t, rec)["error_code"])
}
