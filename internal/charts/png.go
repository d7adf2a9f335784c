package charts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"wqdash/pkg/contracts/domain"
)

var parameterColors = map[domain.Parameter]drawing.Color{
	domain.ParamBOD5: {R: 31, G: 119, B: 180, A: 255},
	domain.ParamNH3N: {R: 255, G: 127, B: 14, A: 255},
	domain.ParamSS:   {R: 44, G: 160, B: 44, A: 255},
}

var (
	neutralColor   = drawing.Color{R: 90, G: 90, B: 90, A: 255}
	predictedColor = drawing.Color{R: 214, G: 39, B: 40, A: 255}
)

// PNGSink writes each target to <dir>/<target>.png
type PNGSink struct {
	dir    string
	width  int
	height int
	logger *slog.Logger
}

// NewPNGSink creates dir if needed
func NewPNGSink(dir string, width, height int, logger *slog.Logger) (*PNGSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}
	return &PNGSink{
		dir:    dir,
		width:  width,
		height: height,
		logger: logger.With(slog.String("component", "png_sink")),
	}, nil
}

// Path returns the file written for target
func (s *PNGSink) Path(target string) string {
	return filepath.Join(s.dir, target+".png")
}

// Render implements ChartSink. The image is written to a temporary file
// and renamed into place.
func (s *PNGSink) Render(ctx context.Context, target string, spec Spec) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, spec, s.width, s.height); err != nil {
		return err
	}

	tmp := s.Path(target) + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	if err := os.Rename(tmp, s.Path(target)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move chart into place: %w", err)
	}

	s.logger.DebugContext(ctx, "Chart image written",
		slog.String("target", target),
		slog.String("path", s.Path(target)),
		slog.Int("bytes", buf.Len()))
	return nil
}

// Clear implements ChartSink
func (s *PNGSink) Clear(_ context.Context, target string) error {
	if err := os.Remove(s.Path(target)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove chart: %w", err)
	}
	return nil
}

// WritePNG rasterises spec. A spec without points draws empty axes
// titled "No data".
func WritePNG(w io.Writer, spec Spec, width, height int) error {
	graph := toChart(spec, width, height)
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", spec.Target, err)
	}
	return nil
}

func toChart(spec Spec, width, height int) chart.Chart {
	graph := chart.Chart{
		Title:  spec.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{Name: spec.XLabel},
		YAxis: chart.YAxis{Name: spec.YLabel},
	}

	if spec.PointCount() == 0 {
		graph.Title = spec.Title + " (No data)"
		graph.XAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
		graph.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
		graph.Series = []chart.Series{chart.ContinuousSeries{
			Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
			XValues: []float64{0, 1},
			YValues: []float64{0, 0},
		}}
		return graph
	}

	timeBased := spec.TimeBased()
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)

	for _, s := range spec.Series {
		if len(s.Points) == 0 {
			continue
		}
		xs := make([]float64, len(s.Points))
		ys := make([]float64, len(s.Points))
		for i, p := range s.Points {
			xs[i] = p.X
			if timeBased && p.Date != nil {
				xs[i] = chart.TimeToFloat64(*p.Date)
			}
			ys[i] = p.Y
			xMin, xMax = math.Min(xMin, xs[i]), math.Max(xMax, xs[i])
			yMin, yMax = math.Min(yMin, ys[i]), math.Max(yMax, ys[i])
		}
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    s.Name,
			Style:   seriesStyle(s),
			XValues: xs,
			YValues: ys,
		})
	}

	// limits only matter when they fall near the data
	for _, th := range spec.Thresholds {
		if th.Value > yMax*2 && yMax > 0 {
			continue
		}
		yMin, yMax = math.Min(yMin, th.Value), math.Max(yMax, th.Value)
	}

	xMin, xMax = widen(xMin, xMax, timeBased)
	yMin, yMax = widen(yMin, yMax, false)

	for _, th := range spec.Thresholds {
		if th.Value < yMin || th.Value > yMax {
			continue
		}
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name: th.Label,
			Style: chart.Style{
				StrokeColor:     colorFor(th.Parameter).WithAlpha(160),
				StrokeWidth:     1,
				StrokeDashArray: []float64{4, 4},
			},
			XValues: []float64{xMin, xMax},
			YValues: []float64{th.Value, th.Value},
		})
	}

	graph.XAxis.Range = &chart.ContinuousRange{Min: xMin, Max: xMax}
	graph.YAxis.Range = &chart.ContinuousRange{Min: yMin, Max: yMax}
	if timeBased {
		graph.XAxis.ValueFormatter = chart.TimeValueFormatterWithFormat("2006-01")
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph
}

func seriesStyle(s Series) chart.Style {
	color := colorFor(s.Parameter)
	if s.Style.Predicted {
		color = predictedColor
	}
	style := chart.Style{StrokeColor: color, StrokeWidth: 2}
	if !s.Style.Lines {
		style.StrokeWidth = chart.Disabled
	}
	if s.Style.Dashed {
		style.StrokeDashArray = []float64{6, 4}
	}
	if s.Style.Markers {
		style.DotColor = color
		style.DotWidth = 3
	}
	return style
}

func colorFor(p domain.Parameter) drawing.Color {
	if c, ok := parameterColors[p]; ok {
		return c
	}
	return neutralColor
}

// widen pads a degenerate range so the chart has a non-zero span
func widen(lo, hi float64, timeBased bool) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	pad := 1.0
	if timeBased {
		pad = float64(24 * time.Hour)
	}
	return lo - pad, hi + pad
}
