package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// RecordsCSV is a small records artifact with one row per failure mode:
// two valid rows, a bad value and a bad date
const RecordsCSV = `Date,BOD5,NH3N,SS
2020-01,1.0,0.5,20
2020-02,4.0,1.0,50
2020-03,abc,0.4,10
not-a-date,1.2,0.3,12
`

// TwoRowCSV is the minimal records artifact with one compliant and one
// failing row
const TwoRowCSV = `Date,BOD5,NH3N,SS
2020-01,1.0,0.5,20
2020-02,4.0,1.0,50
`

// StatisticsCSV has parameters down the first column
const StatisticsCSV = `Parameter,Mean,Min,Max,Std
BOD5,2.10,0.80,4.20,0.95
NH3N,0.62,0.10,1.40,0.31
SS,28.5,9.0,61.0,11.2
`

// SummaryText is a narrative summary with every extraction token
const SummaryText = `The long-term trend shows a gradual decline in BOD5. Correlation between
NH3N and SS is weak. The change is significant at the 5% level.
Recommendations: Upgrade nitrification at the main plant. Further work is planned.`

// WriteFile writes content to name under dir and returns the path
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// FixedClock returns a clock function that always reports now
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
