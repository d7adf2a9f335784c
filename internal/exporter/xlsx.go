package exporter

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"wqdash/internal/config"
	"wqdash/pkg/contracts/domain"
)

// RecordsSheet is the sheet name of the workbook export
const RecordsSheet = "Records"

// WorkbookContentType is the media type of the workbook export
const WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WorkbookFileName returns the download name of the workbook export for a
// range
func WorkbookFileName(tr domain.TimeRange) string {
	return fmt.Sprintf("%s_%s.xlsx", config.ExportFilePrefix, tr)
}

// WriteRecordsWorkbook writes records as a single sheet workbook with the
// same columns as the CSV export. Values are stored as numbers and
// compliance as booleans.
func WriteRecordsWorkbook(w io.Writer, records []domain.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), RecordsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(RecordHeaders))
	for i, h := range RecordHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(RecordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{formatDate(r.Date), r.BOD5, r.NH3N, r.SS, r.Complies}
		if err := f.SetSheetRow(RecordsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteRecordsXLSX writes the workbook export to path
func WriteRecordsXLSX(path string, records []domain.Record) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := WriteRecordsWorkbook(out, records); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
