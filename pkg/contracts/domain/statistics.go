package domain

// Statistic names used by the statistics artifact
const (
	StatCount  = "Count"
	StatMean   = "Mean"
	StatMedian = "Median"
	StatStd    = "Std"
	StatMin    = "Min"
	StatMax    = "Max"
	StatRange  = "Range"
)

// StatisticsSource tells where a statistics panel came from
type StatisticsSource string

const (
	SourceArtifact StatisticsSource = "artifact"
	SourceComputed StatisticsSource = "computed"
	SourceNone     StatisticsSource = "none"
)

// Statistics maps a parameter name to statistic name to value
type Statistics map[string]map[string]float64

// Get returns one statistic
func (s Statistics) Get(param, stat string) (float64, bool) {
	row, ok := s[param]
	if !ok {
		return 0, false
	}
	v, ok := row[stat]
	return v, ok
}

// Set stores one statistic, creating the parameter row if needed
func (s Statistics) Set(param, stat string, v float64) {
	row, ok := s[param]
	if !ok {
		row = make(map[string]float64)
		s[param] = row
	}
	row[stat] = v
}

// Clone returns a deep copy
func (s Statistics) Clone() Statistics {
	out := make(Statistics, len(s))
	for param, row := range s {
		cp := make(map[string]float64, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[param] = cp
	}
	return out
}

// StatisticsPanel is the statistics shown beside the charts
type StatisticsPanel struct {
	Source StatisticsSource `json:"source"`
	Values Statistics       `json:"values"`
}
