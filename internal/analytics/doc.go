// Package analytics holds the pure computations behind the dashboard:
// time-range filtering, regression and forecasting, compliance rates,
// descriptive statistics, annual aggregates and the policy narrative.
//
// Nothing here logs, blocks or keeps state. Undefined results are reported
// as NaN or with a NoData flag instead of an error, so an empty filtered
// view flows through every function.
package analytics
