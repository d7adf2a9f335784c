package dataprocessing

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wqdash/internal/shared/testutil"
	"wqdash/pkg/contracts/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantDates  []time.Time
		wantReport ParseReport
		wantWarns  int
		wantComply []bool
	}{
		{
			name:       "two valid rows keep input order",
			input:      testutil.TwoRowCSV,
			wantDates:  []time.Time{date(2020, 1, 1), date(2020, 2, 1)},
			wantReport: ParseReport{Rows: 2, Parsed: 2},
			wantComply: []bool{true, false},
		},
		{
			name:       "bad value skipped silently and bad date skipped with warning",
			input:      testutil.RecordsCSV,
			wantDates:  []time.Time{date(2020, 1, 1), date(2020, 2, 1)},
			wantReport: ParseReport{Rows: 4, Parsed: 2, SkippedValues: 1, SkippedDates: 1},
			wantWarns:  1,
			wantComply: []bool{true, false},
		},
		{
			name:       "byte order mark and CRLF line endings",
			input:      "\ufeffDate,BOD5,NH3N,SS\r\n2021-06-15,2.4,0.8,39.9\r\n\r\n",
			wantDates:  []time.Time{date(2021, 6, 15)},
			wantReport: ParseReport{Rows: 1, Parsed: 1},
			wantComply: []bool{true},
		},
		{
			name:       "columns in any order with extra columns",
			input:      "Station,SS,Date,NH3-N,BOD5\nA,41,2019-12-01,0.2,1.0\n",
			wantDates:  []time.Time{date(2019, 12, 1)},
			wantReport: ParseReport{Rows: 1, Parsed: 1},
			wantComply: []bool{false},
		},
		{
			name:       "short row and non-finite value are value failures",
			input:      "Date,BOD5,NH3N,SS\n2020-01,1.0\n2020-02,NaN,0.1,1\n2020-03,1,0.1,Inf\n",
			wantDates:  []time.Time{},
			wantReport: ParseReport{Rows: 3, SkippedValues: 3},
		},
		{
			name:       "negative concentrations are value failures",
			input:      "Date,BOD5,NH3N,SS\n2020-01,-1.0,0.1,10\n2020-02,1.0,-0.1,10\n2020-03,1.0,0.1,-10\n2020-04,0,0,0\n",
			wantDates:  []time.Time{date(2020, 4, 1)},
			wantReport: ParseReport{Rows: 4, Parsed: 1, SkippedValues: 3},
			wantComply: []bool{true},
		},
		{
			name:       "header only",
			input:      "Date,BOD5,NH3N,SS\n",
			wantDates:  []time.Time{},
			wantReport: ParseReport{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, handler := testutil.NewTestLogger(t)
			parser := NewRecordParser(logger)

			records, report, err := parser.ParseRecords(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)

			assert.Equal(t, tt.wantReport, report)
			assert.Equal(t, tt.wantDates, domain.Dates(records))
			if tt.wantComply != nil {
				for i, r := range records {
					assert.Equal(t, tt.wantComply[i], r.Complies, "record %d", i)
				}
			}
			assert.Len(t, handler.GetRecordsByLevel(slog.LevelWarn), tt.wantWarns)
		})
	}
}

func TestParseRecordsBadDateWarning(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	parser := NewRecordParser(logger)

	_, report, err := parser.ParseRecords(context.Background(), strings.NewReader(testutil.RecordsCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped())

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "Skipping row with unparsable date")
	warn := handler.GetRecordsByLevel(slog.LevelWarn)[0]
	assert.Equal(t, "not-a-date", warn.Attrs["raw_date"])
	assert.Equal(t, "record_parser", warn.Attrs["component"])
	assert.EqualValues(t, 5, warn.Attrs["line"])
}

func TestParseRecordsSchemaError(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMissing []string
	}{
		{"missing NH3N", "Date,BOD5,SS\n2020-01,1,2\n", []string{ColumnNH3N}},
		{"missing date and SS", "BOD5,NH3N\n1,2\n", []string{ColumnDate, ColumnSS}},
		{"empty header", ",,,\n", []string{ColumnDate, ColumnBOD5, ColumnNH3N, ColumnSS}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewRecordParser(nil)
			records, _, err := parser.ParseRecords(context.Background(), strings.NewReader(tt.input))

			require.Error(t, err)
			assert.Nil(t, records)
			assert.True(t, errors.Is(err, ErrSchema))

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.wantMissing, schemaErr.Missing)
		})
	}
}

func TestParseRecordsEmptyInput(t *testing.T) {
	_, _, err := NewRecordParser(nil).ParseRecords(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseRecordsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, _, err := NewRecordParser(nil).ParseRecords(ctx, strings.NewReader(testutil.TwoRowCSV))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)

	dir := t.TempDir()
	writeRecordsWorkbook(t, filepath.Join(dir, "records.xlsx"))
	_, _, err = NewRecordParser(nil).LoadRecords(ctx, filepath.Join(dir, "records.csv"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRowsStopsAtDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	rows := [][]string{{"Date", "BOD5", "NH3N", "SS"}, {"2020-01", "1", "0.5", "20"}}
	_, report, err := NewRecordParser(nil).parseRows(ctx, rows, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, report.Parsed)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2020-03-15", date(2020, 3, 15)},
		{"2020-03", date(2020, 3, 1)},
		{"2020/03/15", date(2020, 3, 15)},
		{"03/15/2020", date(2020, 3, 15)},
		{"3/5/2020", date(2020, 3, 5)},
		{"2020-03-15 10:30:00", time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"Mar 2020", date(2020, 3, 1)},
		{" 2020-03-15 ", date(2020, 3, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	for _, bad := range []string{"", "not-a-date", "2020-13-01", "43831"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func writeRecordsWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Date", "BOD5", "NH3N", "SS"},
		{43831.0, 1.0, 0.5, 20.0},
		{"2020-02", 4.0, 1.0, 50.0},
		{"soon", 1.0, 0.5, 20.0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestParseRecordsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	writeRecordsWorkbook(t, path)

	logger, handler := testutil.NewTestLogger(t)
	records, report, err := NewRecordParser(logger).ParseRecordsXLSX(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, ParseReport{Rows: 3, Parsed: 2, SkippedDates: 1}, report)
	require.Len(t, records, 2)
	assert.True(t, date(2020, 1, 1).Equal(records[0].Date), "serial date, got %v", records[0].Date)
	assert.True(t, date(2020, 2, 1).Equal(records[1].Date))
	assert.InDelta(t, 4.0, records[1].BOD5, 1e-9)
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "Skipping row with unparsable date")
}

func TestLoadRecords(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		path := testutil.WriteFile(t, t.TempDir(), "records.csv", testutil.TwoRowCSV)
		records, _, err := NewRecordParser(nil).LoadRecords(context.Background(), path)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("falls back to workbook", func(t *testing.T) {
		dir := t.TempDir()
		writeRecordsWorkbook(t, filepath.Join(dir, "records.xlsx"))

		records, _, err := NewRecordParser(nil).LoadRecords(context.Background(), filepath.Join(dir, "records.csv"))
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := NewRecordParser(nil).LoadRecords(context.Background(), filepath.Join(t.TempDir(), "records.csv"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrSchema))
	})
}
