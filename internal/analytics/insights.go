package analytics

import "wqdash/pkg/contracts/domain"

// Insights is the long-term analysis of a record set
type Insights struct {
	Descriptive map[domain.Parameter]domain.Descriptive `json:"descriptive"`
	Correlation domain.CorrelationMatrix                `json:"correlation"`
	Annual      []domain.PeriodMean                     `json:"annual"`
	Monthly     []domain.PeriodMean                     `json:"monthly"`
	Inflections []domain.Inflection                     `json:"inflections"`
	Trends      []domain.LinearTrend                    `json:"trends"`
	Causes      map[domain.Parameter][]string           `json:"potential_causes"`
}

// BuildInsights runs every long-term analysis over records
func BuildInsights(records []domain.Record) Insights {
	annual := AnnualMeans(records)
	trends := LinearTrends(annual)
	inflections := Inflections(annual)
	if inflections == nil {
		inflections = []domain.Inflection{}
	}
	return Insights{
		Descriptive: DescribeRecords(records),
		Correlation: CorrelationMatrixOf(records),
		Annual:      annual,
		Monthly:     MonthlyMeans(records),
		Inflections: inflections,
		Trends:      trends,
		Causes:      PotentialCauses(trends),
	}
}
