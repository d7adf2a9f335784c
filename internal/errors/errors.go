package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error with a fixed HTTP status and a machine readable
// code. The handler turns it into a problem response carrying error_code.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

var (
	ErrInvalidTimeRange  = New(http.StatusBadRequest, "INVALID_TIME_RANGE", "Time range must be one of all, 1y, 2y, 3y")
	ErrUnknownChart      = New(http.StatusNotFound, "UNKNOWN_CHART", "Chart target not found")
	ErrSchema            = New(http.StatusUnprocessableEntity, "SCHEMA_ERROR", "Records artifact is missing a required column")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrRenderFailed      = New(http.StatusInternalServerError, "RENDER_FAILED", "Chart rendering failed")
	ErrWebSocketUpgrade  = New(http.StatusBadRequest, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")
	ErrNotReady          = New(http.StatusServiceUnavailable, "NOT_READY", "Dashboard data is not loaded")
)

// ValidationError names one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload of a multi-field rejection
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// InvalidRequestWithError reports a body that could not be decoded
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation reports a single rejected field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors reports several rejected fields at once
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// FileSystemError creates a filesystem error
func FileSystemError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "FILESYSTEM_ERROR", fmt.Sprintf("File system error during %s", operation), err.Error())
}

// WebSocketUpgradeError reports a rejected websocket handshake with the
// status chosen by the upgrader
func WebSocketUpgradeError(status int, reason error) *APIError {
	return NewWithDetails(status, ErrWebSocketUpgrade.ErrorCode, ErrWebSocketUpgrade.Message, reason.Error())
}

// RenderError is a failure to rasterise one chart
type RenderError struct {
	Target string
	Cause  error
}

// NewRenderError wraps cause as a render failure of target
func NewRenderError(target string, cause error) *RenderError {
	return &RenderError{Target: target, Cause: cause}
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Target, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
