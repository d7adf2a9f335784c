package domain

import (
	"fmt"
	"strings"
	"time"
)

// Regulatory thresholds. A reading complies with a parameter when it is
// strictly below the limit.
const (
	BOD5Limit = 2.5
	NH3NLimit = 0.9
	SSLimit   = 40.0
)

// Parameter identifies a measured pollutant
type Parameter string

const (
	ParamBOD5 Parameter = "BOD5"
	ParamNH3N Parameter = "NH3N"
	ParamSS   Parameter = "SS"
)

// Parameters returns the measured pollutants in display order
func Parameters() []Parameter {
	return []Parameter{ParamBOD5, ParamNH3N, ParamSS}
}

// ParseParameter resolves a case-insensitive parameter name
func ParseParameter(s string) (Parameter, error) {
	for _, p := range Parameters() {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown parameter %q", s)
}

// Limit returns the regulatory threshold for p
func (p Parameter) Limit() float64 {
	switch p {
	case ParamBOD5:
		return BOD5Limit
	case ParamNH3N:
		return NH3NLimit
	case ParamSS:
		return SSLimit
	}
	return 0
}

// Label returns the display name of p
func (p Parameter) Label() string {
	switch p {
	case ParamNH3N:
		return "NH3-N"
	}
	return string(p)
}

// Record is one cleaned measurement row
type Record struct {
	Date     time.Time `json:"date"`
	BOD5     float64   `json:"bod5"`
	NH3N     float64   `json:"nh3n"`
	SS       float64   `json:"ss"`
	Complies bool      `json:"complies"`
}

// NewRecord builds a record and derives its compliance flag
func NewRecord(date time.Time, bod5, nh3n, ss float64) Record {
	return Record{
		Date:     date,
		BOD5:     bod5,
		NH3N:     nh3n,
		SS:       ss,
		Complies: Complies(bod5, nh3n, ss),
	}
}

// Complies reports whether all three readings are below their thresholds
func Complies(bod5, nh3n, ss float64) bool {
	return bod5 < BOD5Limit && nh3n < NH3NLimit && ss < SSLimit
}

// Value returns the reading for p
func (r Record) Value(p Parameter) float64 {
	switch p {
	case ParamBOD5:
		return r.BOD5
	case ParamNH3N:
		return r.NH3N
	case ParamSS:
		return r.SS
	}
	return 0
}

// Below reports whether the reading for p is below its threshold
func (r Record) Below(p Parameter) bool {
	return r.Value(p) < p.Limit()
}

// Values extracts the series for p in record order
func Values(records []Record, p Parameter) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Value(p)
	}
	return out
}

// Dates extracts the record timestamps in order
func Dates(records []Record) []time.Time {
	out := make([]time.Time, len(records))
	for i, r := range records {
		out[i] = r.Date
	}
	return out
}
