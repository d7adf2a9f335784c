package charts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ChartSink is where charts are drawn. Render must not be called for a
// target that still holds a chart; the Registry guarantees this.
type ChartSink interface {
	Render(ctx context.Context, target string, spec Spec) error
	Clear(ctx context.Context, target string) error
}

// Handle identifies the live chart of one target
type Handle struct {
	ID      uint64    `json:"id"`
	Target  string    `json:"target"`
	DrawnAt time.Time `json:"drawn_at"`
}

// Registry owns one chart handle per target
type Registry struct {
	sink   ChartSink
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]Handle
	specs   map[string]Spec
	locks   map[string]*sync.Mutex
	nextID  uint64
}

// NewRegistry creates a registry drawing onto sink
func NewRegistry(sink ChartSink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sink:    sink,
		logger:  logger.With(slog.String("component", "chart_registry")),
		handles: make(map[string]Handle),
		specs:   make(map[string]Spec),
		locks:   make(map[string]*sync.Mutex),
	}
}

// targetLock serialises draws of one target
func (r *Registry) targetLock(target string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[target]
	if !ok {
		l = &sync.Mutex{}
		r.locks[target] = l
	}
	return l
}

// Draw replaces the chart of spec.Target, clearing the existing handle
// before rendering
func (r *Registry) Draw(ctx context.Context, spec Spec) (Handle, error) {
	target := spec.Target
	if target == "" {
		return Handle{}, fmt.Errorf("chart spec has no target")
	}

	l := r.targetLock(target)
	l.Lock()
	defer l.Unlock()

	if err := r.clearLocked(ctx, target); err != nil {
		return Handle{}, err
	}

	r.mu.Lock()
	r.nextID++
	h := Handle{ID: r.nextID, Target: target, DrawnAt: time.Now().UTC()}
	r.mu.Unlock()

	spec.Revision = h.ID
	if err := r.sink.Render(ctx, target, spec); err != nil {
		return Handle{}, fmt.Errorf("render %s: %w", target, err)
	}

	r.mu.Lock()
	r.handles[target] = h
	r.specs[target] = spec
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Chart drawn",
		slog.String("target", target),
		slog.Uint64("handle", h.ID),
		slog.Int("points", spec.PointCount()),
		slog.Bool("no_data", spec.NoData))
	return h, nil
}

// Clear destroys the chart of target if there is one
func (r *Registry) Clear(ctx context.Context, target string) error {
	l := r.targetLock(target)
	l.Lock()
	defer l.Unlock()
	return r.clearLocked(ctx, target)
}

func (r *Registry) clearLocked(ctx context.Context, target string) error {
	r.mu.Lock()
	_, ok := r.handles[target]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := r.sink.Clear(ctx, target); err != nil {
		return fmt.Errorf("clear %s: %w", target, err)
	}

	r.mu.Lock()
	delete(r.handles, target)
	delete(r.specs, target)
	r.mu.Unlock()
	return nil
}

// Handle returns the live handle of target
func (r *Registry) Handle(target string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[target]
	return h, ok
}

// Spec returns the spec currently drawn on target
func (r *Registry) Spec(target string) (Spec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.specs[target]
	return s, ok
}

// Len returns the number of live charts
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
