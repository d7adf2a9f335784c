// Package dataprocessing reads the artifacts produced by the offline
// cleaning step: the records table, the pre-computed statistics table and
// the free-text analysis summary.
//
// # Records
//
// RecordParser resolves the Date, BOD5, NH3N and SS columns by name and
// fails with a *SchemaError when one is missing. Rows with a bad value are
// dropped silently; rows with a bad date are dropped with a warning. The
// order of the input is kept.
//
//	parser := dataprocessing.NewRecordParser(logger)
//	records, report, err := parser.LoadRecords(ctx, cfg.RecordsPath())
//
// When the CSV is missing, LoadRecords reads the .xlsx workbook with the
// same base name.
//
// # Statistics and summary
//
// StatisticsStore and LoadSummary never fail a dashboard load. Their
// errors wrap ErrArtifactUnavailable so callers can count them, and
// StatisticsStore.Resolve computes the panel from records when nothing was
// loaded.
package dataprocessing
