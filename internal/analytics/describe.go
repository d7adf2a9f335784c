package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"wqdash/pkg/contracts/domain"
)

// Mean returns the arithmetic mean, NaN for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value, averaging the two middle values for an
// even count. NaN for no values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the sample standard deviation, NaN for fewer than two
// values
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return stat.StdDev(values, nil)
}

// Describe summarises one series
func Describe(values []float64) domain.Descriptive {
	d := domain.Descriptive{
		Count:  len(values),
		Mean:   Mean(values),
		Median: Median(values),
		Std:    StdDev(values),
		Min:    math.NaN(),
		Max:    math.NaN(),
		Range:  math.NaN(),
	}
	if len(values) > 0 {
		d.Min = floats.Min(values)
		d.Max = floats.Max(values)
		d.Range = d.Max - d.Min
	}
	return d
}

// DescribeRecords summarises every parameter
func DescribeRecords(records []domain.Record) map[domain.Parameter]domain.Descriptive {
	out := make(map[domain.Parameter]domain.Descriptive, 3)
	for _, p := range domain.Parameters() {
		out[p] = Describe(domain.Values(records, p))
	}
	return out
}

// ComputeStatistics builds the statistics panel values from records.
// Undefined statistics are left out.
func ComputeStatistics(records []domain.Record) domain.Statistics {
	stats := make(domain.Statistics)
	for p, d := range DescribeRecords(records) {
		if d.NoData() {
			continue
		}
		name := string(p)
		stats.Set(name, domain.StatCount, float64(d.Count))
		for key, v := range map[string]float64{
			domain.StatMean:   d.Mean,
			domain.StatMedian: d.Median,
			domain.StatStd:    d.Std,
			domain.StatMin:    d.Min,
			domain.StatMax:    d.Max,
			domain.StatRange:  d.Range,
		} {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				stats.Set(name, key, v)
			}
		}
	}
	return stats
}

// CorrelationMatrixOf returns pairwise Pearson coefficients of the
// parameters. Undefined pairs, including a constant series with itself,
// are NaN.
func CorrelationMatrixOf(records []domain.Record) domain.CorrelationMatrix {
	params := domain.Parameters()
	series := make([][]float64, len(params))
	for i, p := range params {
		series[i] = domain.Values(records, p)
	}

	values := make([][]float64, len(params))
	for i := range params {
		values[i] = make([]float64, len(params))
		for j := range params {
			if i == j {
				if constant(series[i]) {
					values[i][j] = math.NaN()
				} else {
					values[i][j] = 1
				}
				continue
			}
			values[i][j] = Correlation(series[i], series[j])
		}
	}
	return domain.CorrelationMatrix{Parameters: params, Values: values}
}
