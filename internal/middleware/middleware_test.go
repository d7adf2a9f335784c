package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "wqdash/internal/errors"
	"wqdash/internal/infrastructure"
	"wqdash/internal/shared/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generates an id", ""},
		{"keeps the caller's id", "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen, traced string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = chimw.GetReqID(r.Context())
				traced = infrastructure.GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, seen)
			}
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			assert.Equal(t, seen, traced)
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(okHandler))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "request completed")
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelDebug), 1)
}

func TestRateLimiter(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	rl := NewRateLimiter(1, 2, logger)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler)

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001").Code)

	rec := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apierrors.TypeRateLimit, body["type"])
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "rate limit exceeded")

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code)

	// tokens refill with time
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1003").Code)

	// idle clients are swept when a new client arrives
	now = now.Add(time.Hour)
	send("10.0.0.3:1000")
	rl.mu.Lock()
	assert.Len(t, rl.clients, 1)
	rl.mu.Unlock()
}

func TestTimeout(t *testing.T) {
	var deadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)

	ws := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ws.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), ws)
	assert.False(t, deadline)
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:8080"}})(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", http.MethodGet, "http://localhost:8080", "http://localhost:8080", http.StatusOK},
		{"foreign origin", http.MethodGet, "http://evil.example", "", http.StatusOK},
		{"preflight", http.MethodOptions, "http://localhost:8080", "http://localhost:8080", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/dashboard/range", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	h := DefaultSecureHeaders().Handler(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	ws := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ws.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, ws)
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAuditLog(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := AuditLog(logger)(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	assert.Zero(t, handler.Count())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/reload", nil))
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "audit log")
}

type rangeBody struct {
	Range  string `json:"range" validate:"required,timerange"`
	Target string `json:"target,omitempty" validate:"omitempty,chart_target"`
}

func TestValidationMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	vm := NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("struct validation", func(t *testing.T) {
		tests := []struct {
			name    string
			body    rangeBody
			wantErr string
		}{
			{"valid", rangeBody{Range: "2y"}, ""},
			{"valid with target", rangeBody{Range: "all", Target: "prediction"}, ""},
			{"missing range", rangeBody{}, "range is required"},
			{"unknown range", rangeBody{Range: "5y"}, "range must be one of: all, 1y, 2y, 3y"},
			{"unknown target", rangeBody{Range: "1y", Target: "pie"}, "target must be one of"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := vm.ValidateStruct(&tt.body)
				if tt.wantErr == "" {
					assert.NoError(t, err)
					return
				}
				require.Error(t, err)
				apiErr, ok := err.(*apierrors.APIError)
				require.True(t, ok)
				details := apiErr.Details.(apierrors.ValidationErrors)
				require.Len(t, details.Errors, 1)
				assert.Contains(t, details.Errors[0].Message, tt.wantErr)
			})
		}
	})

	t.Run("decode and validate", func(t *testing.T) {
		var got rangeBody
		rec := httptest.NewRecorder()
		ok := vm.DecodeAndValidate(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"range":"1y"}`)), &got)
		assert.True(t, ok)
		assert.Equal(t, "1y", got.Range)

		rec = httptest.NewRecorder()
		ok = vm.DecodeAndValidate(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"range":"9y"}`)), &got)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		vm.ValidateRequest(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"range":`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		big := strings.NewReader(`{"range":"` + strings.Repeat("a", DefaultMaxBodySize) + `"}`)
		vm.ValidateRequest(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", big))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json")(okHandler)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`range=1y`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	rec := httptest.NewRecorder()
	tr, ok := qv.ValidateTimeRange(rec, httptest.NewRequest(http.MethodGet, "/?range=3Y", nil), "range")
	assert.True(t, ok)
	assert.EqualValues(t, "3y", tr)

	tr, ok = qv.ValidateTimeRange(rec, httptest.NewRequest(http.MethodGet, "/", nil), "range")
	assert.True(t, ok)
	assert.Empty(t, tr)

	rec = httptest.NewRecorder()
	_, ok = qv.ValidateTimeRange(rec, httptest.NewRequest(http.MethodGet, "/?range=week", nil), "range")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	format, ok := qv.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=xlsx", nil), "format", []string{"csv", "xlsx"}, "csv")
	assert.True(t, ok)
	assert.Equal(t, "xlsx", format)
}

func TestOTelMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewOTelMiddleware(nil, nil, logger)

	r := chi.NewRouter()
	r.Use(m.Handler)
	var traceID string
	r.Get("/api/v1/charts/{target}", func(w http.ResponseWriter, r *http.Request) {
		traceID = infrastructure.GetTraceID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/charts/pie", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, traceID)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", GetRealIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", GetRealIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", GetRealIP(req))
}
