// Command wqreport loads the cleaned water quality artifacts without a
// browser and writes the filtered records, annual means, chart images and
// the long-term insights to an output directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wqdash/internal/charts"
	"wqdash/internal/config"
	"wqdash/internal/dashboard"
	"wqdash/internal/exporter"
	"wqdash/internal/infrastructure"
	"wqdash/internal/validation"
	"wqdash/pkg/contracts/domain"
)

// options are the command line settings of one report run
type options struct {
	Records    string
	Statistics string
	Summary    string
	OutDir     string
	Range      domain.TimeRange
	XLSX       bool
	Charts     bool
	Width      int
	Height     int
	Timeout    time.Duration
}

// artifacts lists the files one run produced
type artifacts struct {
	Records  string
	Annual   string
	Workbook string
	Insights string
	Charts   []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rangeFlag := flag.String("range", cfg.Dashboard.DefaultRange, "time range to export (all, 1y, 2y, 3y)")
	outDir := flag.String("out", filepath.Join(cfg.GetDataDir(), "reports"), "output directory")
	records := flag.String("records", cfg.RecordsPath(), "cleaned records CSV")
	xlsx := flag.Bool("xlsx", false, "also write the records as an Excel workbook")
	withCharts := flag.Bool("charts", true, "write PNG chart images")
	flag.Parse()

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	tr, err := domain.ParseTimeRange(*rangeFlag)
	if err != nil {
		logger.Error("Invalid range", slog.String("range", *rangeFlag), slog.String("error", err.Error()))
		os.Exit(2)
	}

	opts := options{
		Records:    *records,
		Statistics: cfg.StatisticsPath(),
		Summary:    cfg.SummaryPath(),
		OutDir:     *outDir,
		Range:      tr,
		XLSX:       *xlsx,
		Charts:     *withCharts,
		Width:      cfg.Dashboard.ChartWidth,
		Height:     cfg.Dashboard.ChartHeight,
		Timeout:    cfg.Data.LoadTimeout,
	}

	out, err := run(context.Background(), opts, os.Stdout, logger)
	if err != nil {
		logger.Error("Report generation failed", slog.String("error", err.Error()))
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, config.LoadFailureMessage)
		}
		os.Exit(1)
	}

	logger.Info("Report generated successfully",
		slog.String("records", out.Records),
		slog.String("annual", out.Annual),
		slog.String("insights", out.Insights),
		slog.Int("charts", len(out.Charts)))
}

// run loads the artifacts through a headless dashboard, applies the range
// and writes every export. The narrative is printed to w.
func run(ctx context.Context, opts options, w io.Writer, logger *slog.Logger) (*artifacts, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	validator := validation.NewFileValidator(logger)
	source, err := validator.ValidateArtifact(opts.Records)
	if err != nil {
		return nil, err
	}
	if source != opts.Records {
		logger.Info("Reading records from spreadsheet", slog.String("file", source))
	}
	if err := validator.ValidateOutputDirectory(opts.OutDir); err != nil {
		return nil, err
	}

	var sink charts.ChartSink = charts.NewMemorySink()
	var pngSink *charts.PNGSink
	if opts.Charts {
		pngSink, err = charts.NewPNGSink(filepath.Join(opts.OutDir, "charts"), opts.Width, opts.Height, logger)
		if err != nil {
			return nil, err
		}
		sink = pngSink
	}

	ctrl := dashboard.NewController(dashboard.Options{
		Sources: dashboard.Sources{
			Records:    opts.Records,
			Statistics: opts.Statistics,
			Summary:    opts.Summary,
		},
		DefaultRange: opts.Range,
		LoadTimeout:  opts.Timeout,
		Registry:     charts.NewRegistry(sink, logger),
		Metrics:      infrastructure.NoopDashboardMetrics(),
		Logger:       logger,
	})
	ctrl.Start()
	defer ctrl.Stop()

	loadCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := ctrl.Initialize(loadCtx); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", opts.Records, err)
	}

	state := ctrl.Snapshot()
	if state.Report.Skipped() > 0 {
		logger.Warn("Skipped malformed rows",
			slog.Int("skipped", state.Report.Skipped()),
			slog.Int("parsed", len(state.Records)))
	}

	writer := exporter.NewCSVWriter(opts.OutDir, logger)
	out := &artifacts{}

	name := exporter.ExportFileName(state.Range)
	if err := writer.WriteRecordsFile(name, state.Filtered); err != nil {
		return nil, err
	}
	out.Records = filepath.Join(opts.OutDir, name)

	insights, err := ctrl.Insights()
	if err != nil {
		return nil, err
	}
	if err := writer.WriteAnnualMeans("annual_means.csv", insights.Annual); err != nil {
		return nil, err
	}
	out.Annual = filepath.Join(opts.OutDir, "annual_means.csv")

	if opts.XLSX {
		out.Workbook = filepath.Join(opts.OutDir, strings.TrimSuffix(name, ".csv")+".xlsx")
		if err := exporter.WriteRecordsXLSX(out.Workbook, state.Filtered); err != nil {
			return nil, err
		}
	}

	out.Insights = filepath.Join(opts.OutDir, "insights.json")
	if err := writeJSON(out.Insights, insights); err != nil {
		return nil, err
	}

	if pngSink != nil {
		for _, target := range charts.Targets() {
			if _, err := os.Stat(pngSink.Path(target)); err == nil {
				out.Charts = append(out.Charts, pngSink.Path(target))
			}
		}
	}

	printNarrative(w, state.View)
	return out, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func printNarrative(w io.Writer, view *dashboard.ViewModel) {
	if view == nil {
		return
	}
	fmt.Fprintf(w, "%s: %d of %d records\n", view.RangeLabel, view.RecordCount, view.TotalRecords)
	fmt.Fprintf(w, "Overall compliance: %.1f%%\n", view.Compliance.Overall.Percent)
	for _, a := range view.Narrative {
		fmt.Fprintf(w, "\n%s\n%s\n", a.Title, a.Text)
	}
}
