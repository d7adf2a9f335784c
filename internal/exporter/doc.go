// Package exporter writes the dashboard's working records out as files.
//
// The record export has the fixed header Date,BOD5,NH3N,SS,Complies, dates
// as YYYY-MM-DD, values with two decimals and compliance as true/false:
//
//	var buf bytes.Buffer
//	err := exporter.WriteRecords(&buf, records)
//
// CSVWriter writes arbitrary tables relative to an output directory, with
// an optional UTF-8 BOM for Excel, and streams large record sets through a
// StreamWriter. WriteRecordsWorkbook and WriteRecordsXLSX produce the same
// table as an xlsx workbook.
package exporter
