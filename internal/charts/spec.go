package charts

import (
	"fmt"
	"time"

	"wqdash/pkg/contracts/domain"
)

// Render targets, one per dashboard panel
const (
	TargetTimeSeries   = "time_series"
	TargetCorrelation  = "correlation"
	TargetPrediction   = "prediction"
	TargetDistribution = "distribution"
)

// Targets returns the render targets in display order
func Targets() []string {
	return []string{TargetTimeSeries, TargetCorrelation, TargetPrediction, TargetDistribution}
}

// ValidTarget reports whether name is a known render target
func ValidTarget(name string) bool {
	for _, t := range Targets() {
		if t == name {
			return true
		}
	}
	return false
}

// Kind is the chart family a spec is drawn as
type Kind string

const (
	KindLine      Kind = "line"
	KindScatter   Kind = "scatter"
	KindHistogram Kind = "histogram"
)

// Point is one plotted value. Date is set for time-based series and X
// holds its position on the axis.
type Point struct {
	Date *time.Time `json:"date,omitempty"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
}

// Style flags how a series is drawn
type Style struct {
	Dashed    bool `json:"dashed,omitempty"`
	Predicted bool `json:"predicted,omitempty"`
	Markers   bool `json:"markers,omitempty"`
	Lines     bool `json:"lines"`
}

// Bin is one histogram bucket covering [Lower, Upper)
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Box is the five-number summary of a series
type Box struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Series is one named set of points
type Series struct {
	Name      string           `json:"name"`
	Parameter domain.Parameter `json:"parameter,omitempty"`
	Style     Style            `json:"style"`
	Points    []Point          `json:"points"`
	Bins      []Bin            `json:"bins,omitempty"`
	Box       *Box             `json:"box,omitempty"`
}

// Threshold is a horizontal regulatory limit line
type Threshold struct {
	Parameter domain.Parameter `json:"parameter"`
	Value     float64          `json:"value"`
	Label     string           `json:"label"`
}

// Spec describes one chart. Revision is stamped by the Registry when the
// spec is drawn.
type Spec struct {
	Target     string                   `json:"target"`
	Kind       Kind                     `json:"kind"`
	Title      string                   `json:"title"`
	XLabel     string                   `json:"x_label"`
	YLabel     string                   `json:"y_label"`
	Series     []Series                 `json:"series"`
	Thresholds []Threshold              `json:"thresholds,omitempty"`
	Fit        *domain.RegressionResult `json:"fit,omitempty"`
	NoData     bool                     `json:"no_data"`
	Revision   uint64                   `json:"revision"`
}

// TimeBased reports whether the series points carry dates
func (s Spec) TimeBased() bool {
	for _, series := range s.Series {
		for _, p := range series.Points {
			return p.Date != nil
		}
	}
	return false
}

// PointCount returns the number of points across all series
func (s Spec) PointCount() int {
	n := 0
	for _, series := range s.Series {
		n += len(series.Points)
	}
	return n
}

func (s Spec) String() string {
	return fmt.Sprintf("%s(%s, %d series, %d points)", s.Target, s.Kind, len(s.Series), s.PointCount())
}

func thresholdFor(p domain.Parameter) Threshold {
	return Threshold{
		Parameter: p,
		Value:     p.Limit(),
		Label:     fmt.Sprintf("%s limit (%g)", p.Label(), p.Limit()),
	}
}

func datePoint(t time.Time, y float64) Point {
	d := t
	return Point{Date: &d, X: float64(t.Unix()), Y: y}
}
