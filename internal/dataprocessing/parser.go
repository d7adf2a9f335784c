package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"wqdash/internal/config"
	"wqdash/pkg/contracts/domain"
)

const (
	ColumnDate = "Date"
	ColumnBOD5 = "BOD5"
	ColumnNH3N = "NH3N"
	ColumnSS   = "SS"

	delimiter = ","
	utf8BOM   = "\ufeff"
)

// dateLayouts are tried in order by ParseDate
var dateLayouts = []string{
	"2006-01-02",
	"2006-01",
	"2006/01/02",
	"2006/01",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"Jan 2006",
	"January 2006",
	"2006-01-02T15:04:05",
	"01-02-06",
}

// ParseReport counts what happened to the data rows of one input
type ParseReport struct {
	Rows          int `json:"rows"`
	Parsed        int `json:"parsed"`
	SkippedValues int `json:"skipped_values"`
	SkippedDates  int `json:"skipped_dates"`
}

// Skipped returns the number of dropped rows
func (r ParseReport) Skipped() int {
	return r.SkippedValues + r.SkippedDates
}

// RecordParser turns the records artifact into domain records
type RecordParser struct {
	logger *slog.Logger
}

// NewRecordParser creates a parser that logs skipped dates to logger
func NewRecordParser(logger *slog.Logger) *RecordParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordParser{
		logger: logger.With(slog.String("component", "record_parser")),
	}
}

// columns holds resolved field positions
type columns struct {
	date, bod5, nh3n, ss int
}

func (c columns) width() int {
	return max(c.date, c.bod5, c.nh3n, c.ss) + 1
}

// ParseRecords reads comma-delimited text with a header row. Fields are
// split on the delimiter without quote handling. Input order is preserved.
func (p *RecordParser) ParseRecords(ctx context.Context, r io.Reader) ([]domain.Record, ParseReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, ParseReport{}, fmt.Errorf("read records: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ParseReport{}, fmt.Errorf("read records: %w", err)
	}

	return p.parseRows(ctx, splitLines(string(data)), false)
}

// ParseRecordsXLSX reads the first sheet of a workbook with the same
// column and row rules as ParseRecords. Numeric date cells are read as
// Excel serial dates.
func (p *RecordParser) ParseRecordsXLSX(ctx context.Context, path string) ([]domain.Record, ParseReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, ParseReport{}, fmt.Errorf("read workbook: %w", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, ParseReport{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ParseReport{}, fmt.Errorf("workbook %s: %w", path, ErrEmptyInput)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, ParseReport{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	nonEmpty := rows[:0]
	for _, row := range rows {
		if strings.TrimSpace(strings.Join(row, "")) != "" {
			nonEmpty = append(nonEmpty, row)
		}
	}
	return p.parseRows(ctx, nonEmpty, true)
}

// LoadRecords parses path, falling back to the .xlsx sibling when the CSV
// does not exist
func (p *RecordParser) LoadRecords(ctx context.Context, path string) ([]domain.Record, ParseReport, error) {
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		return p.ParseRecords(ctx, f)
	}
	if !os.IsNotExist(err) {
		return nil, ParseReport{}, fmt.Errorf("open records: %w", err)
	}

	sibling := config.SpreadsheetSibling(path)
	if _, statErr := os.Stat(sibling); statErr != nil {
		return nil, ParseReport{}, fmt.Errorf("open records: %w", err)
	}
	p.logger.InfoContext(ctx, "Records CSV not found, reading workbook",
		slog.String("csv_path", path),
		slog.String("xlsx_path", sibling))
	return p.ParseRecordsXLSX(ctx, sibling)
}

func (p *RecordParser) parseRows(ctx context.Context, rows [][]string, spreadsheet bool) ([]domain.Record, ParseReport, error) {
	var report ParseReport
	if len(rows) == 0 {
		return nil, report, ErrEmptyInput
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, report, err
	}

	records := make([]domain.Record, 0, len(rows)-1)
	width := cols.width()
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, report, fmt.Errorf("parse records at line %d: %w", i+2, err)
		}
		report.Rows++
		if len(row) < width {
			report.SkippedValues++
			continue
		}

		bod5, ok1 := parseConcentration(row[cols.bod5])
		nh3n, ok2 := parseConcentration(row[cols.nh3n])
		ss, ok3 := parseConcentration(row[cols.ss])
		if !ok1 || !ok2 || !ok3 {
			report.SkippedValues++
			continue
		}

		raw := row[cols.date]
		date, err := ParseDate(raw)
		if err != nil && spreadsheet {
			date, err = parseSerialDate(raw)
		}
		if err != nil {
			report.SkippedDates++
			p.logger.WarnContext(ctx, "Skipping row with unparsable date",
				slog.Int("line", i+2),
				slog.String("raw_date", raw))
			continue
		}

		records = append(records, domain.NewRecord(date, bod5, nh3n, ss))
	}
	report.Parsed = len(records)

	p.logger.DebugContext(ctx, "Parsed records",
		slog.Int("rows", report.Rows),
		slog.Int("parsed", report.Parsed),
		slog.Int("skipped_values", report.SkippedValues),
		slog.Int("skipped_dates", report.SkippedDates))

	return records, report, nil
}

// resolveColumns finds the required columns by name
func resolveColumns(header []string) (columns, error) {
	pos := map[string]int{}
	for i, name := range header {
		key := normalizeName(name)
		if _, seen := pos[key]; !seen {
			pos[key] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := pos[normalizeName(name)]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	cols := columns{
		date: lookup(ColumnDate),
		bod5: lookup(ColumnBOD5),
		nh3n: lookup(ColumnNH3N),
		ss:   lookup(ColumnSS),
	}
	if len(missing) > 0 {
		return columns{}, &SchemaError{Missing: missing}
	}
	return cols, nil
}

// normalizeName upper-cases a header and drops everything but letters and
// digits, so "NH3-N" and "nh3n" match
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseConcentration is parseValue for measured concentrations, which
// cannot be negative
func parseConcentration(s string) (float64, bool) {
	v, ok := parseValue(s)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseDate accepts the date formats found in cleaned exports
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseSerialDate(s string) (time.Time, error) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || serial <= 0 {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return excelize.ExcelDateToTime(serial, false)
}
