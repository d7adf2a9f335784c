package errors

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	// Bodies larger than this are not captured
	maxCapturedBody = 64 * 1024
	// Captured bodies are truncated to this length in the log
	maxLoggedBody = 500
)

// ErrorMiddleware logs failed requests together with the request body
// that caused them and turns panics into problem responses. Successful
// requests are left to the access log.
type ErrorMiddleware struct {
	handler *ErrorHandler
	logger  *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(handler *ErrorHandler, logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		handler: handler,
		logger:  logger.With(slog.String("component", "error_middleware")),
	}
}

// Handler returns the middleware handler function
func (m *ErrorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		body := captureBody(r)

		defer func() {
			if rec := recover(); rec != nil {
				m.handler.HandlePanic(ww, r, rec)
			}
			if status := ww.Status(); status >= http.StatusBadRequest {
				m.logFailure(r, status, body)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

func (m *ErrorMiddleware) logFailure(r *http.Request, status int, body []byte) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, slog.String("query", r.URL.RawQuery))
	}
	if len(body) > 0 {
		s := string(body)
		if len(s) > maxLoggedBody {
			s = s[:maxLoggedBody] + "..."
		}
		attrs = append(attrs, slog.String("request_body", s))
	}
	m.logger.LogAttrs(r.Context(), level, "request failed", attrs...)
}

// captureBody reads a small request body and puts it back for the handler
func captureBody(r *http.Request) []byte {
	if r.Body == nil || r.ContentLength <= 0 || r.ContentLength > maxCapturedBody {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body
}

// RecoveryMiddleware answers a panicking handler with a 500 problem
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
