// Package api contains HTTP request and response contracts for the
// dashboard API, version v1.
package api

import (
	"time"

	"wqdash/pkg/contracts/domain"
)

// SetRangeRequest selects the dashboard time range
type SetRangeRequest struct {
	Range string `json:"range" validate:"required,oneof=all 1y 2y 3y"`
}

// ExportQuery optionally overrides the range of an export
type ExportQuery struct {
	Range string `json:"range" query:"range" validate:"omitempty,oneof=all 1y 2y 3y"`
}

// StateResponse reports the controller phase
type StateResponse struct {
	Phase     string           `json:"phase"`
	RequestID uint64           `json:"request_id"`
	Range     domain.TimeRange `json:"range"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RangeOption is one entry of the time-range selector
type RangeOption struct {
	Value    domain.TimeRange `json:"value"`
	Label    string           `json:"label"`
	Selected bool             `json:"selected"`
}

// Asset is a pre-rendered image available for a panel
type Asset struct {
	Name  string `json:"name"`
	Panel string `json:"panel"`
	URL   string `json:"url"`
	Size  int64  `json:"size"`
}
