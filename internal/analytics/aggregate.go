package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"wqdash/pkg/contracts/domain"
)

const (
	// InflectionThreshold is the year-over-year percent change that marks
	// an inflection year
	InflectionThreshold = 15.0

	// SignificanceLevel is the p-value below which a trend is significant
	SignificanceLevel = 0.05
)

// AnnualMeans averages each parameter per calendar year, ordered by year
func AnnualMeans(records []domain.Record) []domain.PeriodMean {
	return periodMeans(records, func(r domain.Record) (int, int) {
		return r.Date.Year(), 0
	})
}

// MonthlyMeans averages each parameter per calendar month across all
// years, ordered by month
func MonthlyMeans(records []domain.Record) []domain.PeriodMean {
	return periodMeans(records, func(r domain.Record) (int, int) {
		return 0, int(r.Date.Month())
	})
}

func periodMeans(records []domain.Record, key func(domain.Record) (int, int)) []domain.PeriodMean {
	type bucket struct {
		year, month int
		sums        map[domain.Parameter]float64
		count       int
	}
	buckets := map[[2]int]*bucket{}
	for _, r := range records {
		y, m := key(r)
		k := [2]int{y, m}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{year: y, month: m, sums: map[domain.Parameter]float64{}}
			buckets[k] = b
		}
		b.count++
		for _, p := range domain.Parameters() {
			b.sums[p] += r.Value(p)
		}
	}

	out := make([]domain.PeriodMean, 0, len(buckets))
	for _, b := range buckets {
		means := make(map[domain.Parameter]float64, len(b.sums))
		for p, s := range b.sums {
			means[p] = s / float64(b.count)
		}
		out = append(out, domain.PeriodMean{Year: b.year, Month: b.month, Count: b.count, Means: means})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// Inflections lists the years whose annual mean of any parameter moved by
// more than InflectionThreshold percent from the previous year
func Inflections(annual []domain.PeriodMean) []domain.Inflection {
	var out []domain.Inflection
	for i := 1; i < len(annual); i++ {
		prev, cur := annual[i-1], annual[i]
		inf := domain.Inflection{Year: cur.Year, Changes: map[domain.Parameter]float64{}}
		for _, p := range domain.Parameters() {
			if prev.Means[p] == 0 {
				continue
			}
			change := (cur.Means[p] - prev.Means[p]) / prev.Means[p] * 100
			inf.Changes[p] = change
			if math.Abs(change) > InflectionThreshold {
				inf.Exceeded = append(inf.Exceeded, p)
			}
		}
		if len(inf.Exceeded) > 0 {
			out = append(out, inf)
		}
	}
	return out
}

// LinearTrends regresses the annual means of each parameter against the
// year
func LinearTrends(annual []domain.PeriodMean) []domain.LinearTrend {
	years := make([]float64, len(annual))
	for i, a := range annual {
		years[i] = float64(a.Year)
	}

	out := make([]domain.LinearTrend, 0, 3)
	for _, p := range domain.Parameters() {
		means := make([]float64, len(annual))
		for i, a := range annual {
			means[i] = a.Means[p]
		}

		fit := Regress(years, means)
		t := domain.LinearTrend{
			Parameter:     p,
			Slope:         fit.Slope,
			Intercept:     fit.Intercept,
			RSquared:      math.NaN(),
			PValue:        pValue(fit.R, len(annual)),
			Label:         SlopeLabel(fit.Slope),
			PercentChange: math.NaN(),
			Years:         len(annual),
		}
		if fit.CorrelationDefined() {
			t.RSquared = fit.R * fit.R
		} else if fit.Defined() {
			t.RSquared = 0
		}
		t.Significant = !math.IsNaN(t.PValue) && t.PValue < SignificanceLevel
		if len(means) > 0 && means[0] != 0 {
			t.PercentChange = (means[len(means)-1] - means[0]) / means[0] * 100
		}
		out = append(out, t)
	}
	return out
}

// pValue is the two-sided p-value of the null hypothesis slope == 0 for a
// fit with correlation r over n points
func pValue(r float64, n int) float64 {
	if math.IsNaN(r) || n < 3 {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

// SlopeLabel names the direction and strength of a slope in units per year
func SlopeLabel(slope float64) string {
	switch {
	case math.IsNaN(slope):
		return "insufficient data"
	case slope > 0.5:
		return "strong increase"
	case slope > 0.1:
		return "moderate increase"
	case slope > 0:
		return "slight increase"
	case slope > -0.1:
		return "slight decrease"
	case slope > -0.5:
		return "moderate decrease"
	}
	return "strong decrease"
}
