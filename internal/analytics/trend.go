package analytics

import (
	"math"
	"time"

	"wqdash/pkg/contracts/domain"
)

const (
	// ForecastWindow is the number of most recent records fitted
	ForecastWindow = 24

	// ForecastHorizon is the number of projected monthly points
	ForecastHorizon = 12
)

// Regress fits y = slope*x + intercept by ordinary least squares and
// computes Pearson's r. Empty or mismatched input, or constant x, leaves
// every field NaN. Constant y gives a flat fit with r NaN.
func Regress(x, y []float64) domain.RegressionResult {
	n := len(x)
	res := domain.RegressionResult{
		Slope:     math.NaN(),
		Intercept: math.NaN(),
		R:         math.NaN(),
		N:         n,
	}
	if n == 0 || len(y) != n || constant(x) {
		return res
	}

	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)

	var sxx, syy, sxy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	if constant(y) {
		res.Slope = 0
		res.Intercept = my
		return res
	}

	res.Slope = sxy / sxx
	res.Intercept = my - res.Slope*mx
	res.R = clamp(sxy/math.Sqrt(sxx*syy), -1, 1)
	return res
}

// Correlation returns Pearson's r, NaN when undefined
func Correlation(x, y []float64) float64 {
	return Regress(x, y).R
}

// Forecast fits the last ForecastWindow readings of p against their index
// and projects ForecastHorizon monthly points after the last record. No
// points are produced when the fit is undefined.
func Forecast(records []domain.Record, p domain.Parameter) domain.Forecast {
	window := records
	if len(window) > ForecastWindow {
		window = window[len(window)-ForecastWindow:]
	}

	n := len(window)
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	fit := Regress(x, domain.Values(window, p))

	fc := domain.Forecast{
		Parameter: p,
		Window:    n,
		Fit:       fit,
		Points:    []domain.ForecastPoint{},
	}
	if n == 0 {
		return fc
	}
	fc.LastDate = window[n-1].Date
	if !fit.Defined() {
		return fc
	}

	for k := 1; k <= ForecastHorizon; k++ {
		fc.Points = append(fc.Points, domain.ForecastPoint{
			Date:  addMonths(fc.LastDate, k),
			Value: fit.Predict(float64(n - 1 + k)),
		})
	}
	return fc
}

// QuarterTrend compares the mean of the first quarter of values with the
// mean of the last quarter. The quarter is max(1, n/4) values, so both
// quarters overlap when n < 4.
func QuarterTrend(values []float64) domain.Trend {
	n := len(values)
	if n == 0 {
		return domain.Trend{Direction: domain.TrendStable, NoData: true}
	}

	q := max(1, n/4)
	first := Mean(values[:q])
	last := Mean(values[n-q:])

	t := domain.Trend{
		FirstMean:   first,
		LastMean:    last,
		QuarterSize: q,
	}
	if first != 0 {
		t.PercentChange = (last - first) / first * 100
		t.ChangeDefined = true
	}

	switch {
	case t.PercentChange > 0:
		t.Direction = domain.TrendIncreasing
	case t.PercentChange < 0:
		t.Direction = domain.TrendDecreasing
	default:
		t.Direction = domain.TrendStable
	}
	return t
}

// addMonths moves t forward k calendar months, clamping the day to the
// end of the target month
func addMonths(t time.Time, k int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, k, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return target.AddDate(0, 0, day-1)
}

func constant(values []float64) bool {
	if len(values) < 2 {
		return true
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
