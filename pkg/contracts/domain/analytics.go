package domain

import (
	"encoding/json"
	"math"
	"time"
)

// nullable maps NaN and infinities to JSON null
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// RegressionResult is an ordinary least-squares fit with Pearson's r.
// Undefined quantities are NaN.
type RegressionResult struct {
	Slope     float64
	Intercept float64
	R         float64
	N         int
}

// Defined reports whether the line fit exists
func (r RegressionResult) Defined() bool {
	return !math.IsNaN(r.Slope) && !math.IsNaN(r.Intercept)
}

// CorrelationDefined reports whether r exists
func (r RegressionResult) CorrelationDefined() bool {
	return !math.IsNaN(r.R)
}

// Predict evaluates the fitted line at x
func (r RegressionResult) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// MarshalJSON encodes undefined values as null
func (r RegressionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Slope     *float64 `json:"slope"`
		Intercept *float64 `json:"intercept"`
		R         *float64 `json:"r"`
		RSquared  *float64 `json:"r_squared"`
		N         int      `json:"n"`
	}{
		Slope:     nullable(r.Slope),
		Intercept: nullable(r.Intercept),
		R:         nullable(r.R),
		RSquared:  nullable(r.R * r.R),
		N:         r.N,
	})
}

// ForecastPoint is one projected monthly value
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Forecast is a linear extrapolation of the most recent window
type Forecast struct {
	Parameter Parameter        `json:"parameter"`
	Window    int              `json:"window"`
	Fit       RegressionResult `json:"fit"`
	LastDate  time.Time        `json:"last_date"`
	Points    []ForecastPoint  `json:"points"`
}

// Rate is a compliance percentage rounded to one decimal
type Rate struct {
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
	Total   int     `json:"total"`
	NoData  bool    `json:"no_data"`
}

// ComplianceReport holds per-parameter and overall compliance
type ComplianceReport struct {
	Total   int  `json:"total"`
	BOD5    Rate `json:"bod5"`
	NH3N    Rate `json:"nh3n"`
	SS      Rate `json:"ss"`
	Overall Rate `json:"overall"`
}

// ForParameter returns the rate for p
func (c ComplianceReport) ForParameter(p Parameter) Rate {
	switch p {
	case ParamBOD5:
		return c.BOD5
	case ParamNH3N:
		return c.NH3N
	case ParamSS:
		return c.SS
	}
	return Rate{NoData: true}
}

// TrendDirection is the sign of the quarter-over-quarter change
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Trend compares the first and last quarter of a series
type Trend struct {
	Direction     TrendDirection `json:"direction"`
	FirstMean     float64        `json:"first_mean"`
	LastMean      float64        `json:"last_mean"`
	PercentChange float64        `json:"percent_change"`
	QuarterSize   int            `json:"quarter_size"`
	// ChangeDefined is false when the first quarter mean is zero
	ChangeDefined bool `json:"change_defined"`
	NoData        bool `json:"no_data"`
}

// Descriptive summarises one parameter series. Std is the sample
// standard deviation and is NaN for fewer than two values.
type Descriptive struct {
	Count  int
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
	Range  float64
}

// NoData reports an empty series
func (d Descriptive) NoData() bool {
	return d.Count == 0
}

// MarshalJSON encodes undefined values as null
func (d Descriptive) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
		Std    *float64 `json:"std"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Range  *float64 `json:"range"`
		NoData bool     `json:"no_data"`
	}{
		Count:  d.Count,
		Mean:   nullable(d.Mean),
		Median: nullable(d.Median),
		Std:    nullable(d.Std),
		Min:    nullable(d.Min),
		Max:    nullable(d.Max),
		Range:  nullable(d.Range),
		NoData: d.NoData(),
	})
}

// CorrelationMatrix holds pairwise Pearson coefficients
type CorrelationMatrix struct {
	Parameters []Parameter
	Values     [][]float64
}

// At returns the coefficient for a and b
func (m CorrelationMatrix) At(a, b Parameter) float64 {
	i, j := -1, -1
	for k, p := range m.Parameters {
		if p == a {
			i = k
		}
		if p == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Values[i][j]
}

// MarshalJSON encodes undefined coefficients as null
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = nullable(v)
		}
	}
	return json.Marshal(struct {
		Parameters []Parameter  `json:"parameters"`
		Values     [][]*float64 `json:"values"`
	}{m.Parameters, values})
}

// PeriodMean is the mean of each parameter within a calendar period
type PeriodMean struct {
	Year  int                   `json:"year"`
	Month int                   `json:"month,omitempty"`
	Count int                   `json:"count"`
	Means map[Parameter]float64 `json:"means"`
}

// Inflection marks a year whose mean moved sharply from the previous year
type Inflection struct {
	Year     int                   `json:"year"`
	Changes  map[Parameter]float64 `json:"changes"`
	Exceeded []Parameter           `json:"exceeded"`
}

// LinearTrend is a regression of annual means against the year
type LinearTrend struct {
	Parameter     Parameter
	Slope         float64
	Intercept     float64
	RSquared      float64
	PValue        float64
	Significant   bool
	Label         string
	PercentChange float64
	Years         int
}

// MarshalJSON encodes undefined values as null
func (t LinearTrend) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Parameter     Parameter `json:"parameter"`
		Slope         *float64  `json:"slope"`
		Intercept     *float64  `json:"intercept"`
		RSquared      *float64  `json:"r_squared"`
		PValue        *float64  `json:"p_value"`
		Significant   bool      `json:"significant"`
		Label         string    `json:"label"`
		PercentChange *float64  `json:"percent_change"`
		Years         int       `json:"years"`
	}{
		Parameter:     t.Parameter,
		Slope:         nullable(t.Slope),
		Intercept:     nullable(t.Intercept),
		RSquared:      nullable(t.RSquared),
		PValue:        nullable(t.PValue),
		Significant:   t.Significant,
		Label:         t.Label,
		PercentChange: nullable(t.PercentChange),
		Years:         t.Years,
	})
}

// AdvisoryKind classifies a narrative block
type AdvisoryKind string

const (
	AdvisoryUrgent      AdvisoryKind = "urgent"
	AdvisoryImprovement AdvisoryKind = "improvement"
	AdvisorySustainable AdvisoryKind = "sustainable"
	AdvisoryParameter   AdvisoryKind = "parameter"
	AdvisoryTrendAlert  AdvisoryKind = "trend_alert"
	AdvisoryTrendOK     AdvisoryKind = "trend_positive"
	AdvisoryAnalysis    AdvisoryKind = "analysis"
)

// Advisory is one block of policy text
type Advisory struct {
	Kind      AdvisoryKind `json:"kind"`
	Parameter Parameter    `json:"parameter,omitempty"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
}
