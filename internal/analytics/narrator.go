package analytics

import (
	"fmt"
	"strings"

	"wqdash/pkg/contracts/domain"
)

// Narrative thresholds on the averages of the filtered view
const (
	UrgentComplianceBelow      = 70.0
	ImprovementComplianceBelow = 90.0
	BOD5AdvisoryAbove          = 3.0
	NH3NAdvisoryAbove          = 0.8
	SSAdvisoryAbove            = 35.0
)

// NarrativeInput is everything the narrator looks at
type NarrativeInput struct {
	AvgBOD5        float64
	AvgNH3N        float64
	AvgSS          float64
	ComplianceRate float64
	Direction      domain.TrendDirection

	// Recommendation is text extracted from the analysis summary, if any
	Recommendation string

	// NoData marks an empty view
	NoData bool
}

// Narrate applies the advisory rule table in order. Every matching block
// is returned; the compliance and trend rules each contribute exactly one.
func Narrate(in NarrativeInput) []domain.Advisory {
	if in.NoData {
		return []domain.Advisory{{
			Kind:  domain.AdvisoryAnalysis,
			Title: "No data",
			Text:  "There are no measurements in the selected time range. Choose a wider range to see recommendations.",
		}}
	}

	var out []domain.Advisory

	switch {
	case in.ComplianceRate < UrgentComplianceBelow:
		out = append(out, domain.Advisory{
			Kind:  domain.AdvisoryUrgent,
			Title: "Urgent action required",
			Text: fmt.Sprintf("Only %.1f%% of samples meet all discharge standards. Audit the major point sources, "+
				"tighten permit enforcement and prioritise upgrades at the treatment plants with the most exceedances.",
				in.ComplianceRate),
		})
	case in.ComplianceRate < ImprovementComplianceBelow:
		out = append(out, domain.Advisory{
			Kind:  domain.AdvisoryImprovement,
			Title: "Improvement needed",
			Text: fmt.Sprintf("%.1f%% of samples meet all discharge standards. Target the recurring exceedances "+
				"with process optimisation and more frequent monitoring at the affected outfalls.",
				in.ComplianceRate),
		})
	default:
		out = append(out, domain.Advisory{
			Kind:  domain.AdvisorySustainable,
			Title: "Sustainable management",
			Text: fmt.Sprintf("%.1f%% of samples meet all discharge standards. Maintain current treatment performance "+
				"and keep monitoring to catch early signs of deterioration.",
				in.ComplianceRate),
		})
	}

	if in.AvgBOD5 > BOD5AdvisoryAbove {
		out = append(out, domain.Advisory{
			Kind:      domain.AdvisoryParameter,
			Parameter: domain.ParamBOD5,
			Title:     "Reduce organic load",
			Text: fmt.Sprintf("Average BOD5 is %.2f mg/L. Improve secondary treatment aeration and control "+
				"organic discharges from food processing and agricultural runoff.", in.AvgBOD5),
		})
	}
	if in.AvgNH3N > NH3NAdvisoryAbove {
		out = append(out, domain.Advisory{
			Kind:      domain.AdvisoryParameter,
			Parameter: domain.ParamNH3N,
			Title:     "Control ammonia nitrogen",
			Text: fmt.Sprintf("Average NH3-N is %.2f mg/L. Add or upgrade nitrification stages and manage "+
				"fertiliser and livestock waste in the catchment.", in.AvgNH3N),
		})
	}
	if in.AvgSS > SSAdvisoryAbove {
		out = append(out, domain.Advisory{
			Kind:      domain.AdvisoryParameter,
			Parameter: domain.ParamSS,
			Title:     "Limit suspended solids",
			Text: fmt.Sprintf("Average SS is %.2f mg/L. Improve clarifier performance and enforce erosion "+
				"and sediment controls on construction sites.", in.AvgSS),
		})
	}

	if in.Direction == domain.TrendIncreasing {
		out = append(out, domain.Advisory{
			Kind:  domain.AdvisoryTrendAlert,
			Title: "Pollution trend alert",
			Text:  "BOD5 levels are rising over the selected period. Investigate new or growing sources before limits are breached.",
		})
	} else {
		out = append(out, domain.Advisory{
			Kind:  domain.AdvisoryTrendOK,
			Title: "Positive trend",
			Text:  "BOD5 levels are stable or falling over the selected period. Current measures appear to be working.",
		})
	}

	if rec := strings.TrimSpace(in.Recommendation); rec != "" {
		out = append(out, domain.Advisory{
			Kind:  domain.AdvisoryAnalysis,
			Title: "From the analysis report",
			Text:  rec,
		})
	}
	return out
}

var causes = map[domain.Parameter]struct{ increase, decrease []string }{
	domain.ParamBOD5: {
		increase: []string{
			"Increased organic waste discharge from industrial sources",
			"Agricultural runoff containing organic matter",
			"Ineffective wastewater treatment processes",
			"Urban expansion leading to more sewage discharge",
		},
		decrease: []string{
			"Improved wastewater treatment technologies",
			"Stricter industrial discharge regulations",
			"Better agricultural practices reducing runoff",
			"Implementation of water quality management programs",
		},
	},
	domain.ParamNH3N: {
		increase: []string{
			"Increased fertilizer use in agriculture",
			"Livestock waste management issues",
			"Industrial processes releasing ammonia compounds",
			"Insufficient nitrogen removal in wastewater treatment",
		},
		decrease: []string{
			"Improved nitrogen removal in wastewater treatment",
			"Better agricultural fertilizer management",
			"Reduced livestock density or improved waste management",
			"Industrial emission controls",
		},
	},
	domain.ParamSS: {
		increase: []string{
			"Increased soil erosion due to deforestation or land use changes",
			"Construction activities increasing sediment runoff",
			"Mining operations affecting water quality",
			"Reduced riparian buffer zones along waterways",
		},
		decrease: []string{
			"Improved erosion control measures",
			"Reforestation or better land management practices",
			"Enhanced sedimentation control in construction and mining",
			"Establishment of riparian buffer zones",
		},
	},
}

// PotentialCauses lists likely drivers for each parameter's long-term
// trend. Parameters without a usable trend are omitted.
func PotentialCauses(trends []domain.LinearTrend) map[domain.Parameter][]string {
	out := make(map[domain.Parameter][]string, len(trends))
	for _, t := range trends {
		c, ok := causes[t.Parameter]
		if !ok || t.Years < 2 {
			continue
		}
		list := c.decrease
		if strings.Contains(t.Label, "increase") {
			list = c.increase
		}
		out[t.Parameter] = append([]string(nil), list...)
	}
	return out
}
