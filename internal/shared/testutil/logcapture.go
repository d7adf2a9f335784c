package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log call with its attributes flattened,
// including those bound with Logger.With
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// BufferedSlogHandler keeps every record in memory. Handlers derived with
// WithAttrs share the parent's buffer.
type BufferedSlogHandler struct {
	sink  *logSink
	bound []slog.Attr
	t     testing.TB
}

// NewTestLogger returns a logger that captures records at every level and
// echoes them to the test log
func NewTestLogger(t testing.TB) (*slog.Logger, *BufferedSlogHandler) {
	h := &BufferedSlogHandler{sink: &logSink{}, t: t}
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: make(map[string]any, len(h.bound)+r.NumAttrs())}
	for _, a := range h.bound {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, rec)
	h.sink.mu.Unlock()

	if h.t != nil {
		h.t.Logf("%s %s %v", r.Level, r.Message, rec.Attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := append(append([]slog.Attr(nil), h.bound...), attrs...)
	return &BufferedSlogHandler{sink: h.sink, bound: bound, t: h.t}
}

// WithGroup flattens groups
func (h *BufferedSlogHandler) WithGroup(string) slog.Handler { return h }

// GetRecords returns a copy of everything captured so far
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return append([]LogRecord(nil), h.sink.records...)
}

// GetRecordsByLevel returns the captured records at exactly level
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	var out []LogRecord
	for _, r := range h.GetRecords() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of captured records
func (h *BufferedSlogHandler) Count() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return len(h.sink.records)
}

// ContainsMessage reports whether any record message contains substr
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	for _, r := range h.GetRecords() {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// AssertLogContains fails t unless a record at level contains substr
func AssertLogContains(t testing.TB, h *BufferedSlogHandler, level slog.Level, substr string) {
	t.Helper()
	records := h.GetRecordsByLevel(level)
	for _, r := range records {
		if strings.Contains(r.Message, substr) {
			return
		}
	}
	msgs := make([]string, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.Message)
	}
	t.Errorf("no %s record containing %q; got %q", level, substr, msgs)
}
