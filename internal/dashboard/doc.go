// Package dashboard owns the dashboard session: the loaded artifacts, the
// active time range, the computed view and the charts drawn from it.
//
// All mutable session data lives in one State value held by the
// Controller; there are no package-level variables. Loads and
// recomputations run on a single worker goroutine. Each request gets a
// monotonically increasing id, pending time-range changes are coalesced
// so only the newest one is rendered, and a result that has been
// superseded by a newer request is discarded instead of applied.
//
// Phases:
//
//	uninitialized -> loading -> ready | failed
//	ready -> filtering -> ready
//	ready | failed -> loading (reload)
package dashboard
