package analytics

import (
	"time"

	"wqdash/pkg/contracts/domain"
)

// Cutoff returns the first instant included by tr. The window starts on
// the first day of now's calendar month, tr.Years() years earlier. The
// cutoff is midnight UTC, the zone record dates are parsed in, so a clock
// west of UTC still keeps the boundary month. ok is false for RangeAll.
func Cutoff(tr domain.TimeRange, now time.Time) (cutoff time.Time, ok bool) {
	years := tr.Years()
	if years == 0 {
		return time.Time{}, false
	}
	return time.Date(now.Year()-years, now.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

// FilterByRange returns the records dated on or after the cutoff of tr in
// their original order. RangeAll returns records itself.
func FilterByRange(records []domain.Record, tr domain.TimeRange, now time.Time) []domain.Record {
	cutoff, ok := Cutoff(tr, now)
	if !ok {
		return records
	}

	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if !r.Date.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}
