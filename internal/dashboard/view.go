package dashboard

import (
	"time"

	"wqdash/internal/analytics"
	"wqdash/internal/charts"
	"wqdash/internal/dataprocessing"
	"wqdash/pkg/contracts/domain"
)

// ViewModel is everything shown for one time range
type ViewModel struct {
	RequestID    uint64           `json:"request_id"`
	Range        domain.TimeRange `json:"range"`
	RangeLabel   string           `json:"range_label"`
	Cutoff       *time.Time       `json:"cutoff,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at"`
	RecordCount  int              `json:"record_count"`
	TotalRecords int              `json:"total_records"`
	FirstDate    *time.Time       `json:"first_date,omitempty"`
	LastDate     *time.Time       `json:"last_date,omitempty"`
	NoData       bool             `json:"no_data"`

	Statistics domain.StatisticsPanel                  `json:"statistics"`
	Summary    map[domain.Parameter]domain.Descriptive `json:"summary"`
	Compliance domain.ComplianceReport                 `json:"compliance"`
	Trends     map[domain.Parameter]domain.Trend       `json:"trends"`
	Direction  domain.TrendDirection                   `json:"direction"`
	Forecast   domain.Forecast                         `json:"forecast"`
	Narrative  []domain.Advisory                       `json:"narrative"`
	Extracts   map[string]string                       `json:"extracts"`
	Charts     []charts.Spec                           `json:"charts"`
	Parse      dataprocessing.ParseReport              `json:"parse"`
}

// Chart returns the spec for target
func (v *ViewModel) Chart(target string) (charts.Spec, bool) {
	for _, s := range v.Charts {
		if s.Target == target {
			return s, true
		}
	}
	return charts.Spec{}, false
}

// viewInput is a snapshot of what a recompute needs
type viewInput struct {
	id        uint64
	rng       domain.TimeRange
	now       time.Time
	records   []domain.Record
	report    dataprocessing.ParseReport
	summary   string
	stats     *dataprocessing.StatisticsStore
	extractor dataprocessing.SummaryExtractor
	renderers []charts.Renderer
}

// buildView filters the records and derives every panel. It has no side
// effects so it can run outside the state lock.
func buildView(in viewInput) (*ViewModel, []domain.Record) {
	filtered := analytics.FilterByRange(in.records, in.rng, in.now)

	vm := &ViewModel{
		RequestID:    in.id,
		Range:        in.rng,
		RangeLabel:   in.rng.Label(),
		GeneratedAt:  in.now,
		RecordCount:  len(filtered),
		TotalRecords: len(in.records),
		NoData:       len(filtered) == 0,
		Statistics:   in.stats.Resolve(filtered),
		Summary:      analytics.DescribeRecords(filtered),
		Compliance:   analytics.EvaluateCompliance(filtered),
		Trends:       make(map[domain.Parameter]domain.Trend),
		Forecast:     analytics.Forecast(filtered, domain.ParamBOD5),
		Extracts:     dataprocessing.ExtractAll(in.extractor, in.summary),
		Parse:        in.report,
	}
	if cutoff, ok := analytics.Cutoff(in.rng, in.now); ok {
		vm.Cutoff = &cutoff
	}
	if len(filtered) > 0 {
		first, last := filtered[0].Date, filtered[len(filtered)-1].Date
		vm.FirstDate, vm.LastDate = &first, &last
	}

	for _, p := range domain.Parameters() {
		vm.Trends[p] = analytics.QuarterTrend(domain.Values(filtered, p))
	}
	vm.Direction = vm.Trends[domain.ParamBOD5].Direction

	vm.Narrative = analytics.Narrate(analytics.NarrativeInput{
		AvgBOD5:        vm.Summary[domain.ParamBOD5].Mean,
		AvgNH3N:        vm.Summary[domain.ParamNH3N].Mean,
		AvgSS:          vm.Summary[domain.ParamSS].Mean,
		ComplianceRate: vm.Compliance.Overall.Percent,
		Direction:      vm.Direction,
		Recommendation: vm.Extracts[dataprocessing.TokenRecommendation],
		NoData:         vm.NoData,
	})

	vm.Charts = charts.BuildAll(in.renderers, charts.Input{Records: filtered, Forecast: vm.Forecast})
	return vm, filtered
}
