package dashboard

import (
	"errors"
	"time"

	"wqdash/internal/dataprocessing"
	"wqdash/pkg/contracts/domain"
)

var (
	// ErrNotReady is returned when an operation needs loaded records
	ErrNotReady = errors.New("dashboard not ready")

	// ErrStopped is returned for requests made after Stop
	ErrStopped = errors.New("dashboard stopped")
)

// Phase is the lifecycle state of the dashboard
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
	PhaseFiltering     Phase = "filtering"
	PhaseFailed        Phase = "failed"
)

// Busy reports whether the loading indicator should show
func (p Phase) Busy() bool {
	return p == PhaseLoading || p == PhaseFiltering
}

// Clock returns the current time. Relative time windows are anchored on it.
type Clock func() time.Time

// State is everything the dashboard session holds
type State struct {
	Phase Phase

	// Records is the working set, replaced wholesale on each load and
	// read-only in between
	Records []domain.Record
	Report  dataprocessing.ParseReport
	Summary string

	Range    domain.TimeRange
	Filtered []domain.Record
	View     *ViewModel

	// RequestID is the id of the last applied request
	RequestID uint64
	LoadedAt  time.Time
	Err       error
}

// hasData reports whether records have been loaded at least once
func (s *State) hasData() bool {
	return !s.LoadedAt.IsZero()
}

// StateChange is delivered to listeners on every phase transition
type StateChange struct {
	Phase     Phase
	RequestID uint64
	Range     domain.TimeRange
	Err       error
	At        time.Time
}

// Listener observes phase transitions. Listeners run on the worker
// goroutine and must not wait on another controller request.
type Listener func(StateChange)
