// Package scheduler re-runs the dashboard artifact load on a cron schedule
// so that artifacts regenerated by the offline cleaning step are picked up
// without a restart.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"wqdash/internal/infrastructure"
)

// Job is the work run on every tick
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron spec. Overlapping ticks are skipped.
type Scheduler struct {
	spec    string
	job     Job
	timeout time.Duration
	cron    *cron.Cron
	entry   cron.EntryID
	logger  *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// New parses spec, which accepts five-field expressions and descriptors
// such as "@hourly" or "@every 30m". An empty spec yields a disabled
// scheduler. timeout bounds each run when positive.
func New(spec string, job Job, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		spec:    spec,
		job:     job,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
	if spec == "" {
		return s, nil
	}

	cl := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Enabled reports whether a schedule is configured
func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

// Start begins running the schedule in the background
func (s *Scheduler) Start() {
	if !s.Enabled() {
		s.logger.Info("Scheduled reload disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("Scheduled reload enabled",
		slog.String("spec", s.spec),
		slog.Time("next_run", s.Next()))
}

// Stop halts the schedule and waits for a running job or ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		runs, failures := s.Runs()
		s.logger.Info("Scheduler stopped",
			slog.Int64("runs", runs),
			slog.Int64("failures", failures))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next activation time, zero when disabled or stopped
func (s *Scheduler) Next() time.Time {
	if !s.Enabled() {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Runs returns how many ticks ran and how many of those failed
func (s *Scheduler) Runs() (runs, failures int64) {
	return s.runs.Load(), s.failures.Load()
}

// RunNow runs the job synchronously outside the schedule
func (s *Scheduler) RunNow(ctx context.Context) error {
	ctx = infrastructure.EnsureTraceID(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.runs.Add(1)
	if err := s.job(ctx); err != nil {
		s.failures.Add(1)
		s.logger.ErrorContext(ctx, "Scheduled reload failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}
	s.logger.InfoContext(ctx, "Scheduled reload completed",
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *Scheduler) tick() {
	_ = s.RunNow(context.Background())
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
