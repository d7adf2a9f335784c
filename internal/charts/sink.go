package charts

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTargetOccupied is returned by MemorySink when a chart is rendered
// onto a target that was not cleared first
var ErrTargetOccupied = errors.New("target already holds a chart")

// OpKind names a sink operation
type OpKind string

const (
	OpRender OpKind = "render"
	OpClear  OpKind = "clear"
)

// Op is one recorded sink call
type Op struct {
	Kind   OpKind
	Target string
}

// MemorySink keeps the live spec of every target in memory and records
// the sequence of calls it received
type MemorySink struct {
	mu     sync.Mutex
	charts map[string]Spec
	ops    []Op
}

// NewMemorySink creates an empty sink
func NewMemorySink() *MemorySink {
	return &MemorySink{charts: make(map[string]Spec)}
}

// Render implements ChartSink
func (m *MemorySink) Render(_ context.Context, target string, spec Spec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.charts[target]; ok {
		return fmt.Errorf("%s: %w", target, ErrTargetOccupied)
	}
	m.charts[target] = spec
	m.ops = append(m.ops, Op{Kind: OpRender, Target: target})
	return nil
}

// Clear implements ChartSink
func (m *MemorySink) Clear(_ context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charts, target)
	m.ops = append(m.ops, Op{Kind: OpClear, Target: target})
	return nil
}

// Chart returns the live spec of target
func (m *MemorySink) Chart(target string) (Spec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.charts[target]
	return s, ok
}

// Ops returns a copy of the recorded calls
func (m *MemorySink) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

// MultiSink forwards every call to each sink in order and stops at the
// first error
type MultiSink []ChartSink

// Render implements ChartSink
func (ms MultiSink) Render(ctx context.Context, target string, spec Spec) error {
	for _, s := range ms {
		if err := s.Render(ctx, target, spec); err != nil {
			return err
		}
	}
	return nil
}

// Clear implements ChartSink
func (ms MultiSink) Clear(ctx context.Context, target string) error {
	for _, s := range ms {
		if err := s.Clear(ctx, target); err != nil {
			return err
		}
	}
	return nil
}
