package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wqdash/internal/analytics"
	"wqdash/internal/charts"
	"wqdash/internal/dataprocessing"
	"wqdash/internal/exporter"
	"wqdash/internal/infrastructure"
	"wqdash/pkg/contracts/domain"
)

// ErrUnknownChart is returned for a chart target the dashboard does not draw
var ErrUnknownChart = errors.New("unknown chart target")

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Sources      Sources
	DefaultRange domain.TimeRange

	// Debounce delays each recompute so rapid range changes coalesce
	Debounce    time.Duration
	LoadTimeout time.Duration

	Clock     Clock
	Registry  *charts.Registry
	Renderers []charts.Renderer
	Extractor dataprocessing.SummaryExtractor
	Metrics   *infrastructure.DashboardMetrics
	Logger    *slog.Logger
}

// request is one unit of work for the worker. Requests submitted while
// another is pending are merged into it.
type request struct {
	ctx      context.Context
	id       uint64
	reload   bool
	rng      domain.TimeRange
	hasRange bool
	waiters  []chan result
}

type result struct {
	view *ViewModel
	err  error
}

// Controller drives the dashboard session
type Controller struct {
	sources     Sources
	debounce    time.Duration
	loadTimeout time.Duration
	clock       Clock
	parser      *dataprocessing.RecordParser
	stats       *dataprocessing.StatisticsStore
	extractor   dataprocessing.SummaryExtractor
	registry    *charts.Registry
	renderers   []charts.Renderer
	metrics     *infrastructure.DashboardMetrics
	logger      *slog.Logger
	tracer      trace.Tracer

	mu    sync.RWMutex
	state State

	seq atomic.Uint64

	pendingMu sync.Mutex
	pending   *request
	stopped   bool

	listenersMu sync.Mutex
	listeners   []Listener

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// NewController creates a controller in the uninitialized phase
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := opts.DefaultRange
	if rng == "" {
		rng = domain.RangeAll
	}
	registry := opts.Registry
	if registry == nil {
		registry = charts.NewRegistry(charts.NewMemorySink(), logger)
	}
	renderers := opts.Renderers
	if renderers == nil {
		renderers = charts.DefaultRenderers()
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = dataprocessing.NewRegexSummaryExtractor()
	}

	return &Controller{
		sources:     opts.Sources,
		debounce:    opts.Debounce,
		loadTimeout: opts.LoadTimeout,
		clock:       clock,
		parser:      dataprocessing.NewRecordParser(logger),
		stats:       dataprocessing.NewStatisticsStore(logger),
		extractor:   extractor,
		registry:    registry,
		renderers:   renderers,
		metrics:     opts.Metrics,
		logger:      logger.With(slog.String("component", "dashboard")),
		tracer:      otel.Tracer("wqdash/dashboard"),
		state:       State{Phase: PhaseUninitialized, Range: rng},
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the worker goroutine. Requests start it on demand.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run()
	})
}

// Stop ends the worker. Pending requests fail with ErrStopped. A stopped
// controller cannot be restarted.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.pendingMu.Lock()
		c.stopped = true
		c.pendingMu.Unlock()
		close(c.quit)
		if c.started.Load() {
			<-c.done
		}
	})
}

// Subscribe registers a listener for phase transitions
func (c *Controller) Subscribe(l Listener) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenersMu.Unlock()
}

// Initialize loads the artifacts and draws the initial view
func (c *Controller) Initialize(ctx context.Context) error {
	_, err := c.submit(ctx, true, nil)
	return err
}

// Reload re-reads the artifacts and redraws the active range
func (c *Controller) Reload(ctx context.Context) (*ViewModel, error) {
	return c.submit(ctx, true, nil)
}

// SetTimeRange switches the active range and redraws every chart. Calls
// made while another change is pending are merged; all callers receive
// the view of the newest range.
func (c *Controller) SetTimeRange(ctx context.Context, tr domain.TimeRange) (*ViewModel, error) {
	tr, err := domain.ParseTimeRange(string(tr))
	if err != nil {
		return nil, err
	}
	switch c.Phase() {
	case PhaseUninitialized, PhaseFailed:
		return nil, ErrNotReady
	}
	return c.submit(ctx, false, &tr)
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Phase
}

// Snapshot returns a copy of the session state. Slices are shared and
// must be treated as read-only.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// View returns the last applied view
func (c *Controller) View() (*ViewModel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.View == nil {
		return nil, ErrNotReady
	}
	return c.state.View, nil
}

// Chart returns the spec drawn on target
func (c *Controller) Chart(target string) (charts.Spec, error) {
	if !charts.ValidTarget(target) {
		return charts.Spec{}, fmt.Errorf("%w: %q", ErrUnknownChart, target)
	}
	if spec, ok := c.registry.Spec(target); ok {
		return spec, nil
	}
	view, err := c.View()
	if err != nil {
		return charts.Spec{}, err
	}
	if spec, ok := view.Chart(target); ok {
		return spec, nil
	}
	return charts.Spec{}, fmt.Errorf("%w: %q", ErrUnknownChart, target)
}

// Export writes the filtered view as CSV and returns its range
func (c *Controller) Export(ctx context.Context, w io.Writer) (domain.TimeRange, error) {
	return c.export(ctx, "csv", func(records []domain.Record) error {
		return exporter.WriteRecords(w, records)
	})
}

// ExportWorkbook writes the filtered records of the active range to w as
// an xlsx workbook
func (c *Controller) ExportWorkbook(ctx context.Context, w io.Writer) (domain.TimeRange, error) {
	return c.export(ctx, "xlsx", func(records []domain.Record) error {
		return exporter.WriteRecordsWorkbook(w, records)
	})
}

func (c *Controller) export(ctx context.Context, format string, write func([]domain.Record) error) (domain.TimeRange, error) {
	c.mu.RLock()
	if c.state.View == nil {
		c.mu.RUnlock()
		return "", ErrNotReady
	}
	records, rng := c.state.Filtered, c.state.Range
	c.mu.RUnlock()

	if err := write(records); err != nil {
		return rng, fmt.Errorf("export: %w", err)
	}
	c.metrics.RecordExport(ctx, string(rng))
	c.logger.InfoContext(ctx, "Exported filtered records",
		slog.String("range", string(rng)),
		slog.String("format", format),
		slog.Int("records", len(records)))
	return rng, nil
}

// Insights is the long-term analysis of the whole working set
type Insights struct {
	analytics.Insights
	RecordCount int               `json:"record_count"`
	Extracts    map[string]string `json:"extracts"`
}

// Insights analyses every loaded record regardless of the active range
func (c *Controller) Insights() (*Insights, error) {
	c.mu.RLock()
	if !c.state.hasData() {
		c.mu.RUnlock()
		return nil, ErrNotReady
	}
	records, summary := c.state.Records, c.state.Summary
	c.mu.RUnlock()

	return &Insights{
		Insights:    analytics.BuildInsights(records),
		RecordCount: len(records),
		Extracts:    dataprocessing.ExtractAll(c.extractor, summary),
	}, nil
}

func (c *Controller) submit(ctx context.Context, reload bool, rng *domain.TimeRange) (*ViewModel, error) {
	c.Start()
	done := make(chan result, 1)

	c.pendingMu.Lock()
	if c.stopped {
		c.pendingMu.Unlock()
		return nil, ErrStopped
	}
	id := c.seq.Add(1)
	if c.pending == nil {
		c.pending = &request{}
	} else if rng != nil && c.pending.hasRange {
		c.metrics.RecordCoalesced(ctx)
		c.logger.DebugContext(ctx, "Coalesced pending time range change",
			slog.String("replaced", string(c.pending.rng)),
			slog.String("range", string(*rng)))
	}
	p := c.pending
	p.ctx = ctx
	p.id = id
	p.reload = p.reload || reload
	if rng != nil {
		p.rng, p.hasRange = *rng, true
	}
	p.waiters = append(p.waiters, done)
	c.pendingMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}

	select {
	case res := <-done:
		return res.view, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.failPending(ErrStopped)
			return
		case <-c.wake:
		}

		if c.debounce > 0 {
			timer := time.NewTimer(c.debounce)
			select {
			case <-c.quit:
				timer.Stop()
				c.failPending(ErrStopped)
				return
			case <-timer.C:
			}
		}

		if req := c.takePending(); req != nil {
			c.process(req)
		}
	}
}

func (c *Controller) takePending() *request {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	req := c.pending
	c.pending = nil
	return req
}

func (c *Controller) failPending(err error) {
	if req := c.takePending(); req != nil {
		finish(req, result{err: err})
	}
}

// superseded reports whether a newer request is waiting
func (c *Controller) superseded(id uint64) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.pending != nil && c.pending.id > id
}

// handOver moves the waiters of a superseded request to the pending one
func (c *Controller) handOver(req *request) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending == nil {
		return false
	}
	c.pending.waiters = append(c.pending.waiters, req.waiters...)
	return true
}

func finish(req *request, res result) {
	for _, w := range req.waiters {
		w <- res
	}
}

func (c *Controller) process(req *request) {
	ctx := context.WithoutCancel(req.ctx)
	ctx, span := c.tracer.Start(ctx, "dashboard.process", trace.WithAttributes(
		attribute.Int64("request_id", int64(req.id)),
		attribute.Bool("reload", req.reload),
		attribute.String("range", string(req.rng)),
	))
	defer span.End()

	if req.reload {
		if err := c.load(ctx, req.id); err != nil {
			finish(req, result{err: err})
			return
		}
	}

	now := c.clock()
	c.mu.Lock()
	if !c.state.hasData() {
		c.mu.Unlock()
		finish(req, result{err: ErrNotReady})
		return
	}
	rng := c.state.Range
	if req.hasRange {
		rng = req.rng
	}
	if !req.reload {
		c.state.Phase = PhaseFiltering
	}
	in := viewInput{
		id:        req.id,
		rng:       rng,
		now:       now,
		records:   c.state.Records,
		report:    c.state.Report,
		summary:   c.state.Summary,
		stats:     c.stats,
		extractor: c.extractor,
		renderers: c.renderers,
	}
	c.mu.Unlock()
	if !req.reload {
		c.notify(StateChange{Phase: PhaseFiltering, RequestID: req.id, Range: rng})
	}

	start := time.Now()
	view, filtered := buildView(in)
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"records":            view.RecordCount,
		"compliance_percent": view.Compliance.Overall.Percent,
	})

	if c.superseded(req.id) && c.handOver(req) {
		c.metrics.RecordStale(ctx, kindOf(req))
		c.logger.DebugContext(ctx, "Discarding superseded result",
			slog.Uint64("request_id", req.id),
			slog.String("range", string(rng)))
		return
	}

	drawErr := c.draw(ctx, view)

	c.mu.Lock()
	if req.id < c.state.RequestID {
		current := c.state.View
		c.mu.Unlock()
		c.metrics.RecordStale(ctx, kindOf(req))
		finish(req, result{view: current})
		return
	}
	c.state.Range = rng
	c.state.Filtered = filtered
	c.state.View = view
	c.state.RequestID = req.id
	c.state.Phase = PhaseReady
	c.state.Err = drawErr
	c.mu.Unlock()

	c.metrics.RecordRecompute(ctx, string(rng), time.Since(start))
	c.logger.InfoContext(ctx, "Dashboard view updated",
		slog.Uint64("request_id", req.id),
		slog.String("range", string(rng)),
		slog.Int("records", view.RecordCount),
		slog.Float64("compliance", view.Compliance.Overall.Percent))
	c.notify(StateChange{Phase: PhaseReady, RequestID: req.id, Range: rng, Err: drawErr})
	finish(req, result{view: view, err: drawErr})
}

// load replaces the working set. A failure keeps a previously loaded
// working set and only fails the dashboard when there is none.
func (c *Controller) load(ctx context.Context, id uint64) error {
	c.mu.Lock()
	c.state.Phase = PhaseLoading
	rng := c.state.Range
	c.mu.Unlock()
	c.notify(StateChange{Phase: PhaseLoading, RequestID: id, Range: rng})

	start := time.Now()
	res, err := c.loadArtifacts(ctx)
	c.metrics.RecordLoad(ctx, time.Since(start), len(res.records), err)

	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to load dashboard data",
			slog.String("path", c.sources.Records),
			slog.String("error", err.Error()),
			slog.Bool("schema_error", errors.Is(err, dataprocessing.ErrSchema)))

		c.mu.Lock()
		c.state.Err = err
		c.state.Phase = PhaseFailed
		if c.state.hasData() {
			c.state.Phase = PhaseReady
		}
		phase := c.state.Phase
		c.mu.Unlock()
		c.notify(StateChange{Phase: phase, RequestID: id, Range: rng, Err: err})
		return err
	}

	c.metrics.RecordSkipped(ctx, "value", res.report.SkippedValues)
	c.metrics.RecordSkipped(ctx, "date", res.report.SkippedDates)

	loadedAt := c.clock()
	c.mu.Lock()
	c.state.Records = res.records
	c.state.Report = res.report
	c.state.Summary = res.summary
	c.state.LoadedAt = loadedAt
	c.state.Err = nil
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Loaded dashboard data",
		slog.Int("records", len(res.records)),
		slog.Int("skipped", res.report.Skipped()),
		slog.Bool("statistics_available", c.stats.Available()),
		slog.Bool("summary_available", res.summary != ""),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// draw renders every chart of view, clearing each target first
func (c *Controller) draw(ctx context.Context, view *ViewModel) error {
	var firstErr error
	for i, spec := range view.Charts {
		h, err := c.registry.Draw(ctx, spec)
		if err != nil {
			c.logger.WarnContext(ctx, "Chart render failed",
				slog.String("target", spec.Target),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		view.Charts[i].Revision = h.ID
		c.metrics.RecordRender(ctx, spec.Target)
	}
	return firstErr
}

func (c *Controller) notify(change StateChange) {
	change.At = c.clock()
	c.listenersMu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.listenersMu.Unlock()
	for _, l := range listeners {
		l(change)
	}
}

func kindOf(req *request) string {
	if req.reload {
		return "reload"
	}
	return "range"
}
