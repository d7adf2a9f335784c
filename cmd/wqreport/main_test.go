package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wqdash/internal/charts"
	"wqdash/internal/shared/testutil"
	"wqdash/pkg/contracts/domain"
)

func writeRecords(t *testing.T, dir string, months int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,BOD5,NH3N,SS\n")
	for i := 0; i < months; i++ {
		d := time.Date(2018, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC)
		fmt.Fprintf(&b, "%s,%.1f,%.2f,%d\n", d.Format("2006-01"), 1.5+0.2*float64(i%4), 0.5, 12+i%9)
	}
	return testutil.WriteFile(t, dir, "records.csv", b.String())
}

func testOptions(t *testing.T, months int) options {
	dir := t.TempDir()
	return options{
		Records:    writeRecords(t, dir, months),
		Statistics: filepath.Join(dir, "statistics.csv"),
		Summary:    filepath.Join(dir, "analysis_summary.txt"),
		OutDir:     filepath.Join(dir, "out"),
		Range:      domain.RangeAll,
		Width:      640,
		Height:     320,
		Timeout:    5 * time.Second,
	}
}

func TestRun_WritesExports(t *testing.T) {
	opts := testOptions(t, 24)
	opts.XLSX = true
	opts.Charts = true
	logger, _ := testutil.NewTestLogger(t)

	var stdout bytes.Buffer
	out, err := run(context.Background(), opts, &stdout, logger)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(opts.OutDir, "water_quality_all.csv"), out.Records)
	data, err := os.ReadFile(out.Records)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 25)

	assert.FileExists(t, out.Annual)

	wb, err := excelize.OpenFile(out.Workbook)
	require.NoError(t, err)
	rows, err := wb.GetRows("Records")
	require.NoError(t, err)
	assert.Len(t, rows, 25)
	require.NoError(t, wb.Close())

	raw, err := os.ReadFile(out.Insights)
	require.NoError(t, err)
	var insights map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &insights))
	assert.EqualValues(t, 24, insights["record_count"])
	assert.Contains(t, insights, "annual")

	assert.NotEmpty(t, out.Charts)
	for _, p := range out.Charts {
		assert.True(t, charts.ValidTarget(strings.TrimSuffix(filepath.Base(p), ".png")))
	}
	assert.Contains(t, stdout.String(), "of 24 records")
	assert.Contains(t, stdout.String(), "Overall compliance")
}

func TestRun_AppliesRange(t *testing.T) {
	opts := testOptions(t, 12)
	opts.Range = domain.RangeOneYear
	logger, _ := testutil.NewTestLogger(t)

	out, err := run(context.Background(), opts, &bytes.Buffer{}, logger)
	require.NoError(t, err)

	assert.Equal(t, "water_quality_1y.csv", filepath.Base(out.Records))
	assert.Empty(t, out.Workbook)
	assert.Empty(t, out.Charts)
}

func TestRun_MissingRecords(t *testing.T) {
	opts := testOptions(t, 1)
	opts.Records = filepath.Join(t.TempDir(), "missing.csv")
	logger, _ := testutil.NewTestLogger(t)

	_, err := run(context.Background(), opts, &bytes.Buffer{}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")
}
