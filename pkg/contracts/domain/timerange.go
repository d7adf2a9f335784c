package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTimeRange is returned for unknown time range names
var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange selects a rolling window of records
type TimeRange string

const (
	RangeAll        TimeRange = "all"
	RangeOneYear    TimeRange = "1y"
	RangeTwoYears   TimeRange = "2y"
	RangeThreeYears TimeRange = "3y"
)

// TimeRanges returns the selectable ranges in display order
func TimeRanges() []TimeRange {
	return []TimeRange{RangeAll, RangeOneYear, RangeTwoYears, RangeThreeYears}
}

// ParseTimeRange validates a range name
func ParseTimeRange(s string) (TimeRange, error) {
	tr := TimeRange(strings.ToLower(strings.TrimSpace(s)))
	switch tr {
	case RangeAll, RangeOneYear, RangeTwoYears, RangeThreeYears:
		return tr, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
}

// Years returns the window length, or 0 for all
func (tr TimeRange) Years() int {
	switch tr {
	case RangeOneYear:
		return 1
	case RangeTwoYears:
		return 2
	case RangeThreeYears:
		return 3
	}
	return 0
}

// Label returns the selector caption
func (tr TimeRange) Label() string {
	switch tr {
	case RangeOneYear:
		return "Last year"
	case RangeTwoYears:
		return "Last 2 years"
	case RangeThreeYears:
		return "Last 3 years"
	}
	return "All data"
}
