package charts

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"wqdash/internal/analytics"
	"wqdash/pkg/contracts/domain"
)

// HistogramBins is the number of buckets per parameter in the
// distribution chart
const HistogramBins = 10

// Input is what the renderers draw from: the filtered records and the
// forecast computed for them
type Input struct {
	Records  []domain.Record
	Forecast domain.Forecast
}

// Renderer builds the spec for one target
type Renderer interface {
	Target() string
	Build(in Input) Spec
}

// RendererFunc adapts a function to Renderer
type RendererFunc struct {
	Name string
	Fn   func(in Input) Spec
}

// Target implements Renderer
func (r RendererFunc) Target() string { return r.Name }

// Build implements Renderer
func (r RendererFunc) Build(in Input) Spec { return r.Fn(in) }

// DefaultRenderers returns the four dashboard renderers in display order
func DefaultRenderers() []Renderer {
	return []Renderer{
		RendererFunc{TargetTimeSeries, func(in Input) Spec { return TimeSeries(in.Records) }},
		RendererFunc{TargetCorrelation, func(in Input) Spec { return Correlation(in.Records) }},
		RendererFunc{TargetPrediction, func(in Input) Spec { return Prediction(in.Records, in.Forecast) }},
		RendererFunc{TargetDistribution, func(in Input) Spec { return Distribution(in.Records) }},
	}
}

// BuildAll runs every renderer against in
func BuildAll(renderers []Renderer, in Input) []Spec {
	specs := make([]Spec, 0, len(renderers))
	for _, r := range renderers {
		specs = append(specs, r.Build(in))
	}
	return specs
}

// TimeSeries plots each parameter against the record date with its
// regulatory threshold
func TimeSeries(records []domain.Record) Spec {
	spec := Spec{
		Target: TargetTimeSeries,
		Kind:   KindLine,
		Title:  "Water quality parameters over time",
		XLabel: "Date",
		YLabel: "Concentration (mg/L)",
		Series: []Series{},
		NoData: len(records) == 0,
	}
	for _, p := range domain.Parameters() {
		spec.Thresholds = append(spec.Thresholds, thresholdFor(p))
		if spec.NoData {
			continue
		}
		series := Series{Name: p.Label(), Parameter: p, Style: Style{Lines: true, Markers: true}}
		series.Points = make([]Point, len(records))
		for i, r := range records {
			series.Points[i] = datePoint(r.Date, r.Value(p))
		}
		spec.Series = append(spec.Series, series)
	}
	return spec
}

// Correlation is a BOD5 against NH3-N scatter with the fitted line drawn
// across the observed BOD5 range when the fit exists
func Correlation(records []domain.Record) Spec {
	spec := Spec{
		Target: TargetCorrelation,
		Kind:   KindScatter,
		Title:  "BOD5 vs NH3-N",
		XLabel: "BOD5 (mg/L)",
		YLabel: "NH3-N (mg/L)",
		Series: []Series{},
		NoData: len(records) == 0,
	}
	if spec.NoData {
		return spec
	}

	x := domain.Values(records, domain.ParamBOD5)
	y := domain.Values(records, domain.ParamNH3N)
	scatter := Series{Name: "Samples", Style: Style{Markers: true}, Points: make([]Point, len(x))}
	for i := range x {
		scatter.Points[i] = Point{X: x[i], Y: y[i]}
	}
	spec.Series = append(spec.Series, scatter)

	fit := analytics.Regress(x, y)
	spec.Fit = &fit
	if fit.Defined() {
		lo, hi := floats.Min(x), floats.Max(x)
		spec.Series = append(spec.Series, Series{
			Name:   "Linear fit",
			Style:  Style{Lines: true},
			Points: []Point{{X: lo, Y: fit.Predict(lo)}, {X: hi, Y: fit.Predict(hi)}},
		})
	}
	return spec
}

// Prediction plots historical BOD5 and the projected points as a dashed
// series flagged as predicted
func Prediction(records []domain.Record, forecast domain.Forecast) Spec {
	spec := Spec{
		Target:     TargetPrediction,
		Kind:       KindLine,
		Title:      "BOD5 forecast (next 12 months)",
		XLabel:     "Date",
		YLabel:     "BOD5 (mg/L)",
		Series:     []Series{},
		Thresholds: []Threshold{thresholdFor(domain.ParamBOD5)},
		NoData:     len(records) == 0,
	}
	if spec.NoData {
		return spec
	}

	history := Series{Name: "Historical", Parameter: domain.ParamBOD5, Style: Style{Lines: true, Markers: true}}
	history.Points = make([]Point, len(records))
	for i, r := range records {
		history.Points[i] = datePoint(r.Date, r.BOD5)
	}
	spec.Series = append(spec.Series, history)

	if len(forecast.Points) > 0 {
		predicted := Series{
			Name:      "Predicted",
			Parameter: domain.ParamBOD5,
			Style:     Style{Lines: true, Markers: true, Dashed: true, Predicted: true},
			Points:    make([]Point, len(forecast.Points)),
		}
		for i, fp := range forecast.Points {
			predicted.Points[i] = datePoint(fp.Date, fp.Value)
		}
		spec.Series = append(spec.Series, predicted)
		fit := forecast.Fit
		spec.Fit = &fit
	}
	return spec
}

// Distribution holds a histogram and a five-number summary per parameter.
// The points of each series are the bin midpoints against their counts.
func Distribution(records []domain.Record) Spec {
	spec := Spec{
		Target: TargetDistribution,
		Kind:   KindHistogram,
		Title:  "Parameter distributions",
		XLabel: "Concentration (mg/L)",
		YLabel: "Samples",
		Series: []Series{},
		NoData: len(records) == 0,
	}
	for _, p := range domain.Parameters() {
		spec.Thresholds = append(spec.Thresholds, thresholdFor(p))
		if spec.NoData {
			continue
		}
		sorted := domain.Values(records, p)
		sort.Float64s(sorted)

		bins := histogram(sorted, HistogramBins)
		series := Series{
			Name:      p.Label(),
			Parameter: p,
			Style:     Style{Lines: true},
			Bins:      bins,
			Box:       boxOf(sorted),
			Points:    make([]Point, len(bins)),
		}
		for i, b := range bins {
			series.Points[i] = Point{X: (b.Lower + b.Upper) / 2, Y: float64(b.Count)}
		}
		spec.Series = append(spec.Series, series)
	}
	return spec
}

// histogram buckets sorted values into n equal-width bins. A constant
// series gets a single bin.
func histogram(sorted []float64, n int) []Bin {
	if len(sorted) == 0 {
		return nil
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(sorted)}}
	}

	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	// the top divider is exclusive, so nudge it past the maximum
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	bins[n-1].Upper = hi
	return bins
}

func boxOf(sorted []float64) *Box {
	if len(sorted) == 0 {
		return nil
	}
	return &Box{
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}
