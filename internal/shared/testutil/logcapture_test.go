package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler_KeepsBoundAttrs(t *testing.T) {
	logger, handler := NewTestLogger(t)
	component := logger.With(slog.String("component", "record_parser"))

	component.Warn("Skipping row", slog.Int("line", 4))
	logger.Info("Loaded records")

	require.Equal(t, 2, handler.Count())
	warn := handler.GetRecordsByLevel(slog.LevelWarn)
	require.Len(t, warn, 1)
	assert.Equal(t, "record_parser", warn[0].Attrs["component"])
	assert.EqualValues(t, 4, warn[0].Attrs["line"])
	assert.NotContains(t, handler.GetRecordsByLevel(slog.LevelInfo)[0].Attrs, "component")
}

func TestBufferedSlogHandler_CapturesDebug(t *testing.T) {
	logger, handler := NewTestLogger(t)
	logger.Debug("render scheduled")

	assert.True(t, handler.ContainsMessage("render"))
	assert.False(t, handler.ContainsMessage("export"))
	AssertLogContains(t, handler, slog.LevelDebug, "scheduled")
}

type failRecorder struct {
	testing.TB
	failed bool
}

func (f *failRecorder) Helper()                       {}
func (f *failRecorder) Errorf(string, ...interface{}) { f.failed = true }

func TestAssertLogContains_ReportsMissing(t *testing.T) {
	logger, handler := NewTestLogger(t)
	logger.Error("load failed")

	probe := &failRecorder{}
	AssertLogContains(probe, handler, slog.LevelError, "render")
	assert.True(t, probe.failed)
}
