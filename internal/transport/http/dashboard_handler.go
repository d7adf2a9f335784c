package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"wqdash/internal/charts"
	apierrors "wqdash/internal/errors"
	"wqdash/internal/exporter"
	"wqdash/internal/middleware"
	apiv1 "wqdash/pkg/contracts/api/v1"
)

const pngSuffix = ".png"

// DashboardHandler serves the dashboard API with RFC 7807 errors
type DashboardHandler struct {
	service      DashboardServiceInterface
	validation   *middleware.ValidationMiddleware
	queries      *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validation:   middleware.NewValidationMiddleware(logger, errorHandler),
		queries:      middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/", h.GetView)
		r.Get("/state", h.GetState)
		r.Get("/ranges", h.GetRanges)
		r.Get("/insights", h.GetInsights)
		r.Get("/assets", h.GetAssets)
		r.Post("/reload", h.Reload)

		r.With(middleware.ContentTypeValidator("application/json"), h.validation.ValidateRequest).Put("/range", h.SetRange)
	})

	// Content type depends on the suffix, JSON spec or PNG image
	r.With(h.ChartCtx).Get("/charts/{target}", h.GetChart)
	r.Get("/export", h.Export)

	return r
}

// ChartCtx validates the chart target before the handler runs
func (h *DashboardHandler) ChartCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := strings.TrimSuffix(chi.URLParam(r, "target"), pngSuffix)
		if !charts.ValidTarget(target) {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError(fmt.Sprintf("chart %q", target)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetView handles GET /api/v1/dashboard
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// GetState handles GET /api/v1/dashboard/state
func (h *DashboardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.State())
}

// GetRanges handles GET /api/v1/dashboard/ranges
func (h *DashboardHandler) GetRanges(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"ranges": h.service.Ranges(),
	})
}

// SetRange handles PUT /api/v1/dashboard/range
func (h *DashboardHandler) SetRange(w http.ResponseWriter, r *http.Request) {
	var req apiv1.SetRangeRequest
	if !h.validation.DecodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.service.SetTimeRange(r.Context(), req.Range)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Time range changed",
		slog.String("range", string(view.Range)),
		slog.Int("records", view.RecordCount))
	render.JSON(w, r, view)
}

// Reload handles POST /api/v1/dashboard/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Reload(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// GetChart handles GET /api/v1/dashboard/charts/{target} and its .png
// variant
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "target")
	target := strings.TrimSuffix(param, pngSuffix)

	if target != param {
		var buf bytes.Buffer
		if err := h.service.RenderChartPNG(r.Context(), target, &buf); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(buf.Bytes()); err != nil {
			h.logger.WarnContext(r.Context(), "Failed to write chart image",
				slog.String("target", target),
				slog.String("error", err.Error()))
		}
		return
	}

	spec, err := h.service.Chart(target)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, spec)
}

// Export handles GET /api/v1/dashboard/export. format selects csv (the
// default) or xlsx. The body is buffered so a failure can still be
// reported as a problem response.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	override, ok := h.queries.ValidateTimeRange(w, r, "range")
	if !ok {
		return
	}
	format, ok := h.queries.ValidateEnum(w, r, "format", []string{"csv", "xlsx"}, "csv")
	if !ok {
		return
	}

	export, contentType := h.service.Export, "text/csv; charset=utf-8"
	if format == "xlsx" {
		export, contentType = h.service.ExportWorkbook, exporter.WorkbookContentType
	}

	var buf bytes.Buffer
	filename, err := export(r.Context(), string(override), &buf)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write export",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
	}
}

// GetInsights handles GET /api/v1/dashboard/insights
func (h *DashboardHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.Insights()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, insights)
}

// GetAssets handles GET /api/v1/dashboard/assets
func (h *DashboardHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.Assets(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("list assets", err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}
