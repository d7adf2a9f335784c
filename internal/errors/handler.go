package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wqdash/internal/dashboard"
	"wqdash/internal/dataprocessing"
	"wqdash/pkg/contracts/domain"
)

// Common error types following RFC 7807
const (
	TypeValidation   = "/errors/validation"
	TypeNotFound     = "/errors/not-found"
	TypeRateLimit    = "/errors/rate-limit"
	TypeInternal     = "/errors/internal"
	TypeServiceDown  = "/errors/service-unavailable"
	TypeTimeout      = "/errors/timeout"
	TypeMethodDenied = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeInvalidRange     = "/errors/dashboard/invalid-range"
	TypeNotReady         = "/errors/dashboard/not-ready"
	TypeUnknownChart     = "/errors/chart/unknown-target"
	TypeRenderFailed     = "/errors/chart/render-failed"
	TypeSchema           = "/errors/data/schema"
	TypeDataNotFound     = "/errors/data/not-found"
	TypeWebSocketUpgrade = "/errors/websocket/upgrade-failed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var schemaErr *dataprocessing.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeSchema,
			"Records Schema Error",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", ErrSchema.ErrorCode).
			WithExtension("missing", schemaErr.Missing)

	case errors.Is(err, dataprocessing.ErrSchema):
		return h.apiErrorToProblem(ErrSchema, r)

	case errors.Is(err, domain.ErrInvalidTimeRange):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidRange,
			"Invalid Time Range",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", ErrInvalidTimeRange.ErrorCode).
			WithExtension("allowed", domain.TimeRanges())

	case errors.Is(err, dashboard.ErrUnknownChart):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeUnknownChart,
			"Unknown Chart",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", ErrUnknownChart.ErrorCode)

	case errors.Is(err, dashboard.ErrNotReady), errors.Is(err, dashboard.ErrStopped):
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			TypeNotReady,
			"Dashboard Not Ready",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", ErrNotReady.ErrorCode)

	case errors.Is(err, dataprocessing.ErrArtifactUnavailable), errors.Is(err, fs.ErrNotExist):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeDataNotFound,
			"Data Not Found",
			err.Error(),
			r.URL.Path,
		)
	}

	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeRenderFailed,
			"Chart Rendering Failed",
			renderErr.Error(),
			r.URL.Path,
		).WithExtension("error_code", ErrRenderFailed.ErrorCode).
			WithExtension("target", renderErr.Target)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "INVALID_TIME_RANGE":
		problemType = TypeInvalidRange
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "UNKNOWN_CHART":
		problemType = TypeUnknownChart
	case "SCHEMA_ERROR":
		problemType = TypeSchema
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "RENDER_FAILED":
		problemType = TypeRenderFailed
	case "WEBSOCKET_UPGRADE_FAILED":
		problemType = TypeWebSocketUpgrade
	case "NOT_READY":
		problemType = TypeNotReady
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodDenied,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON writes v with the given status
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
