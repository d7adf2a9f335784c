package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplies(t *testing.T) {
	tests := []struct {
		name           string
		bod5, nh3n, ss float64
		want           bool
	}{
		{"all below", 1.0, 0.5, 20, true},
		{"all above", 4.0, 1.0, 50, false},
		{"bod5 at limit", 2.5, 0.5, 20, false},
		{"nh3n at limit", 1.0, 0.9, 20, false},
		{"ss at limit", 1.0, 0.5, 40, false},
		{"just below every limit", 2.49, 0.89, 39.99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Complies(tt.bod5, tt.nh3n, tt.ss))
			r := NewRecord(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), tt.bod5, tt.nh3n, tt.ss)
			assert.Equal(t, tt.want, r.Complies)
			assert.Equal(t, r.Complies, r.Below(ParamBOD5) && r.Below(ParamNH3N) && r.Below(ParamSS))
		})
	}
}

func TestRecordValues(t *testing.T) {
	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{NewRecord(d1, 1, 0.5, 20), NewRecord(d2, 4, 1, 50)}

	assert.Equal(t, []float64{1, 4}, Values(records, ParamBOD5))
	assert.Equal(t, []float64{0.5, 1}, Values(records, ParamNH3N))
	assert.Equal(t, []float64{20, 50}, Values(records, ParamSS))
	assert.Equal(t, []time.Time{d1, d2}, Dates(records))
	assert.Zero(t, records[0].Value(Parameter("pH")))
}

func TestParseParameter(t *testing.T) {
	p, err := ParseParameter(" nh3n ")
	require.NoError(t, err)
	assert.Equal(t, ParamNH3N, p)
	assert.Equal(t, NH3NLimit, p.Limit())
	assert.Equal(t, "NH3-N", p.Label())

	_, err = ParseParameter("COD")
	assert.Error(t, err)
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeRange
		years   int
		wantErr bool
	}{
		{"all", RangeAll, 0, false},
		{"1y", RangeOneYear, 1, false},
		{" 2Y ", RangeTwoYears, 2, false},
		{"3y", RangeThreeYears, 3, false},
		{"5y", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeRange(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.years, got.Years())
			assert.NotEmpty(t, got.Label())
		})
	}
}

func TestStatistics(t *testing.T) {
	s := Statistics{}
	s.Set("BOD5", StatMean, 2.1)
	s.Set("BOD5", StatMax, 4.0)

	v, ok := s.Get("BOD5", StatMean)
	assert.True(t, ok)
	assert.Equal(t, 2.1, v)

	_, ok = s.Get("SS", StatMean)
	assert.False(t, ok)

	clone := s.Clone()
	clone.Set("BOD5", StatMean, 9)
	v, _ = s.Get("BOD5", StatMean)
	assert.Equal(t, 2.1, v)
}
