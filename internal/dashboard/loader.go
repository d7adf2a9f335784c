package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"wqdash/internal/dataprocessing"
	"wqdash/pkg/contracts/domain"
)

// Sources names the three input artifacts. Only Records is required.
type Sources struct {
	Records    string
	Statistics string
	Summary    string
}

// loadResult is one successful artifact load
type loadResult struct {
	records []domain.Record
	report  dataprocessing.ParseReport
	summary string
	stats   domain.Statistics

	statsErr   error
	summaryErr error
}

// loadArtifacts reads the records, statistics and summary concurrently.
// Statistics and summary failures are recorded on the result but never
// fail the load. The statistics store is committed only once every read
// has finished and the records loaded.
func (c *Controller) loadArtifacts(ctx context.Context) (loadResult, error) {
	ctx, span := c.tracer.Start(ctx, "dashboard.load")
	defer span.End()

	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	var res loadResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		records, report, err := c.parser.LoadRecords(gctx, c.sources.Records)
		if err != nil {
			return fmt.Errorf("load records: %w", err)
		}
		res.records, res.report = records, report
		return nil
	})

	if c.sources.Statistics != "" {
		g.Go(func() error {
			res.stats, res.statsErr = c.stats.Read(gctx, c.sources.Statistics)
			return nil
		})
	}

	if c.sources.Summary != "" {
		g.Go(func() error {
			res.summary, res.summaryErr = dataprocessing.LoadSummary(gctx, c.sources.Summary, c.logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return loadResult{}, err
	}

	if c.sources.Statistics != "" {
		c.stats.Commit(res.stats)
	}

	span.SetAttributes(
		attribute.Int("records", len(res.records)),
		attribute.Int("skipped", res.report.Skipped()),
		attribute.Bool("statistics_available", res.statsErr == nil && c.sources.Statistics != ""),
		attribute.Bool("summary_available", res.summaryErr == nil && res.summary != ""),
	)

	for _, err := range []error{res.statsErr, res.summaryErr} {
		if err != nil && !errors.Is(err, dataprocessing.ErrArtifactUnavailable) {
			c.logger.WarnContext(ctx, "Optional artifact failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}
