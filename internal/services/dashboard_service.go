package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"wqdash/internal/charts"
	"wqdash/internal/config"
	"wqdash/internal/dashboard"
	apierrors "wqdash/internal/errors"
	"wqdash/internal/exporter"
	"wqdash/internal/files"
	"wqdash/internal/websocket"
	apiv1 "wqdash/pkg/contracts/api/v1"
	"wqdash/pkg/contracts/domain"
	"wqdash/pkg/contracts/events"
)

// Sticky hub keys for dashboard broadcasts
const (
	StateKey = "dashboard:state"
	ViewKey  = "dashboard:view"
	ErrorKey = "dashboard:error"
)

// DashboardController is the part of the dashboard controller the service
// drives. *dashboard.Controller implements it.
type DashboardController interface {
	Initialize(ctx context.Context) error
	Reload(ctx context.Context) (*dashboard.ViewModel, error)
	SetTimeRange(ctx context.Context, tr domain.TimeRange) (*dashboard.ViewModel, error)
	Snapshot() dashboard.State
	View() (*dashboard.ViewModel, error)
	Chart(target string) (charts.Spec, error)
	Export(ctx context.Context, w io.Writer) (domain.TimeRange, error)
	ExportWorkbook(ctx context.Context, w io.Writer) (domain.TimeRange, error)
	Insights() (*dashboard.Insights, error)
	Subscribe(l dashboard.Listener)
}

// DashboardOptions configures a DashboardService
type DashboardOptions struct {
	// AssetsDir holds pre-rendered images listed by Assets
	AssetsDir string
	// AssetsURL is the URL prefix assets are served under
	AssetsURL   string
	ChartWidth  int
	ChartHeight int
}

// DashboardService exposes the dashboard to the transports and keeps
// browsers informed of every state change
type DashboardService struct {
	ctrl      DashboardController
	publisher websocket.Publisher
	opts      DashboardOptions
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewDashboardService creates the service and subscribes it to the
// controller's state changes. publisher may be nil.
func NewDashboardService(ctrl DashboardController, publisher websocket.Publisher, opts DashboardOptions, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChartWidth <= 0 {
		opts.ChartWidth = 1024
	}
	if opts.ChartHeight <= 0 {
		opts.ChartHeight = 480
	}
	if opts.AssetsURL == "" {
		opts.AssetsURL = "/assets/"
	}

	s := &DashboardService{
		ctrl:      ctrl,
		publisher: publisher,
		opts:      opts,
		validate:  validator.New(),
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
	ctrl.Subscribe(s.onStateChange)
	return s
}

// onStateChange runs on the controller worker. Publishing only enqueues.
func (s *DashboardService) onStateChange(change dashboard.StateChange) {
	if s.publisher == nil {
		return
	}

	event := events.StateEvent{
		Phase:     string(change.Phase),
		RequestID: change.RequestID,
		Range:     string(change.Range),
		Loading:   change.Phase.Busy(),
	}
	if change.Err != nil {
		event.Message = change.Err.Error()
	}
	s.publisher.PublishSticky(StateKey, events.Message{
		Type:      events.MessageTypeDashboardState,
		Timestamp: change.At,
		Data:      event,
	})

	switch change.Phase {
	case dashboard.PhaseFailed:
		s.publisher.PublishSticky(ErrorKey, events.Message{
			Type:      events.MessageTypeError,
			Timestamp: change.At,
			Data: events.ErrorEvent{
				Code:    "LOAD_FAILED",
				Message: config.LoadFailureMessage,
				Fatal:   true,
			},
		})
	case dashboard.PhaseReady:
		view, err := s.ctrl.View()
		if err != nil {
			return
		}
		s.publisher.PublishSticky(ViewKey, events.Message{
			Type:      events.MessageTypeDashboardView,
			Timestamp: change.At,
			Data:      withoutCharts(view),
		})
	}
}

// withoutCharts copies view minus its chart specs, which travel as
// separate chart events
func withoutCharts(view *dashboard.ViewModel) dashboard.ViewModel {
	v := *view
	v.Charts = nil
	return v
}

// Initialize performs the initial load
func (s *DashboardService) Initialize(ctx context.Context) error {
	if err := s.ctrl.Initialize(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Dashboard initialization failed",
			slog.String("error", err.Error()))
		return fmt.Errorf("initialize dashboard: %w", err)
	}
	return nil
}

// State reports the controller phase
func (s *DashboardService) State() apiv1.StateResponse {
	st := s.ctrl.Snapshot()
	resp := apiv1.StateResponse{
		Phase:     string(st.Phase),
		RequestID: st.RequestID,
		Range:     st.Range,
		UpdatedAt: st.LoadedAt,
	}
	if st.View != nil {
		resp.UpdatedAt = st.View.GeneratedAt
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// Ranges returns the selector options with the active range marked
func (s *DashboardService) Ranges() []apiv1.RangeOption {
	active := s.ctrl.Snapshot().Range
	ranges := domain.TimeRanges()
	opts := make([]apiv1.RangeOption, 0, len(ranges))
	for _, tr := range ranges {
		opts = append(opts, apiv1.RangeOption{
			Value:    tr,
			Label:    tr.Label(),
			Selected: tr == active,
		})
	}
	return opts
}

// View returns the current view
func (s *DashboardService) View() (*dashboard.ViewModel, error) {
	return s.ctrl.View()
}

// SetTimeRange parses raw and switches the dashboard to it
func (s *DashboardService) SetTimeRange(ctx context.Context, raw string) (*dashboard.ViewModel, error) {
	tr, err := domain.ParseTimeRange(raw)
	if err != nil {
		return nil, err
	}
	view, err := s.ctrl.SetTimeRange(ctx, tr)
	if err != nil {
		return view, fmt.Errorf("set time range %s: %w", tr, err)
	}
	return view, nil
}

// Reload re-reads the artifacts
func (s *DashboardService) Reload(ctx context.Context) (*dashboard.ViewModel, error) {
	view, err := s.ctrl.Reload(ctx)
	if err != nil {
		return view, fmt.Errorf("reload: %w", err)
	}
	return view, nil
}

// Chart returns the spec drawn on target
func (s *DashboardService) Chart(target string) (charts.Spec, error) {
	return s.ctrl.Chart(target)
}

// RenderChartPNG draws target as a PNG image into w
func (s *DashboardService) RenderChartPNG(ctx context.Context, target string, w io.Writer) error {
	spec, err := s.ctrl.Chart(target)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := charts.WritePNG(w, spec, s.opts.ChartWidth, s.opts.ChartHeight); err != nil {
		return apierrors.NewRenderError(target, err)
	}
	return nil
}

// Export writes the filtered view as CSV and returns the download name.
// A non-empty rangeOverride switches the dashboard to that range first.
func (s *DashboardService) Export(ctx context.Context, rangeOverride string, w io.Writer) (string, error) {
	if err := s.switchRange(ctx, rangeOverride); err != nil {
		return "", err
	}
	rng, err := s.ctrl.Export(ctx, w)
	if err != nil {
		return "", err
	}
	return exporter.ExportFileName(rng), nil
}

// ExportWorkbook is Export in xlsx form
func (s *DashboardService) ExportWorkbook(ctx context.Context, rangeOverride string, w io.Writer) (string, error) {
	if err := s.switchRange(ctx, rangeOverride); err != nil {
		return "", err
	}
	rng, err := s.ctrl.ExportWorkbook(ctx, w)
	if err != nil {
		return "", err
	}
	return exporter.WorkbookFileName(rng), nil
}

func (s *DashboardService) switchRange(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	tr, err := domain.ParseTimeRange(raw)
	if err != nil {
		return err
	}
	if tr == s.ctrl.Snapshot().Range {
		return nil
	}
	if _, err := s.ctrl.SetTimeRange(ctx, tr); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ExportFileName returns the download name of the active range
func (s *DashboardService) ExportFileName() string {
	return exporter.ExportFileName(s.ctrl.Snapshot().Range)
}

// Insights returns the long-term analysis
func (s *DashboardService) Insights() (*dashboard.Insights, error) {
	return s.ctrl.Insights()
}

// Assets lists the pre-rendered images in the assets directory. A missing
// directory yields an empty list.
func (s *DashboardService) Assets(ctx context.Context) ([]apiv1.Asset, error) {
	if s.opts.AssetsDir == "" {
		return []apiv1.Asset{}, nil
	}
	images, err := files.NewDiscovery("").FindImages(s.opts.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if len(images) == 0 {
		s.logger.DebugContext(ctx, "No assets found",
			slog.String("dir", s.opts.AssetsDir))
	}

	assets := make([]apiv1.Asset, 0, len(images))
	for _, img := range images {
		assets = append(assets, apiv1.Asset{
			Name:  img.Name,
			Panel: panelFor(img.Name),
			URL:   s.opts.AssetsURL + img.Name,
			Size:  img.Size,
		})
	}
	return assets, nil
}

// panelFor guesses the dashboard panel an asset illustrates from its name
func panelFor(name string) string {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	switch {
	case strings.Contains(base, "time_series"):
		return charts.TargetTimeSeries
	case strings.Contains(base, "correlation"):
		return charts.TargetCorrelation
	case strings.Contains(base, "predict"), strings.Contains(base, "forecast"):
		return charts.TargetPrediction
	case strings.Contains(base, "distribution"):
		return charts.TargetDistribution
	}
	return "insights"
}

// HandleCommand serves websocket commands. It matches
// websocket.CommandHandler.
func (s *DashboardService) HandleCommand(ctx context.Context, clientID string, cmd events.ClientCommand) error {
	logger := s.logger.With(
		slog.String("client_id", clientID),
		slog.String("command", string(cmd.Type)))

	switch cmd.Type {
	case events.MessageTypeSetRange:
		var req events.SetRangeCommand
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		req.Range = strings.ToLower(strings.TrimSpace(req.Range))
		if err := s.validate.Struct(req); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidTimeRange, err)
		}
		logger.InfoContext(ctx, "Range change requested", slog.String("range", req.Range))
		_, err := s.SetTimeRange(ctx, req.Range)
		return err

	case events.MessageTypeReload:
		logger.InfoContext(ctx, "Reload requested")
		_, err := s.Reload(ctx)
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Type)
}
