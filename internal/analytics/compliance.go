package analytics

import (
	"math"

	"wqdash/pkg/contracts/domain"
)

// EvaluateCompliance computes the share of records below each threshold
// and the share meeting all three. Percentages are rounded to one decimal.
// With no records every rate is flagged NoData.
func EvaluateCompliance(records []domain.Record) domain.ComplianceReport {
	total := len(records)
	report := domain.ComplianceReport{Total: total}

	var bod5, nh3n, ss, all int
	for _, r := range records {
		if r.Below(domain.ParamBOD5) {
			bod5++
		}
		if r.Below(domain.ParamNH3N) {
			nh3n++
		}
		if r.Below(domain.ParamSS) {
			ss++
		}
		if r.Complies {
			all++
		}
	}

	report.BOD5 = rate(bod5, total)
	report.NH3N = rate(nh3n, total)
	report.SS = rate(ss, total)
	report.Overall = rate(all, total)
	return report
}

func rate(count, total int) domain.Rate {
	if total == 0 {
		return domain.Rate{NoData: true}
	}
	return domain.Rate{
		Percent: round1(float64(count) / float64(total) * 100),
		Count:   count,
		Total:   total,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
