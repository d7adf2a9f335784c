package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"wqdash/internal/config"
	"wqdash/pkg/contracts/domain"
)

// RecordHeaders is the header row of the record export
var RecordHeaders = []string{"Date", "BOD5", "NH3N", "SS", "Complies"}

// AnnualHeaders is the header row of the annual means export
var AnnualHeaders = []string{"Year", "Samples", "BOD5", "NH3N", "SS"}

// RecordRow formats one record in export column order
func RecordRow(r domain.Record) []string {
	return []string{
		formatDate(r.Date),
		formatFloat(r.BOD5),
		formatFloat(r.NH3N),
		formatFloat(r.SS),
		formatBool(r.Complies),
	}
}

// AnnualRow formats one annual aggregate
func AnnualRow(p domain.PeriodMean) []string {
	return []string{
		formatInt(p.Year),
		formatInt(p.Count),
		formatFloat(p.Means[domain.ParamBOD5]),
		formatFloat(p.Means[domain.ParamNH3N]),
		formatFloat(p.Means[domain.ParamSS]),
	}
}

// ExportFileName returns the download name for a range, e.g.
// water_quality_1y.csv
func ExportFileName(tr domain.TimeRange) string {
	return fmt.Sprintf("%s_%s.csv", config.ExportFilePrefix, tr)
}

// WriteRecords writes the header and one row per record to w. Two records
// produce exactly three lines.
func WriteRecords(w io.Writer, records []domain.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(RecordHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, r := range records {
		if err := writer.Write(RecordRow(r)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a writer resolving relative paths against baseDir
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "csv_writer")),
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAnnualMeans writes annual aggregates with a BOM for spreadsheet users
func (w *CSVWriter) WriteAnnualMeans(filePath string, annual []domain.PeriodMean) error {
	rows := make([][]string, len(annual))
	for i, p := range annual {
		rows[i] = AnnualRow(p)
	}
	return w.WriteCSV(filePath, WriteOptions{Headers: AnnualHeaders, Records: rows, BOMPrefix: true})
}

// WriteRecordsFile streams records to filePath in the record export format
func (w *CSVWriter) WriteRecordsFile(filePath string, records []domain.Record) error {
	sw, err := w.CreateStreamWriter(filePath, RecordHeaders, false)
	if err != nil {
		return err
	}
	for i, r := range records {
		if err := sw.WriteRecord(RecordRow(r)); err != nil {
			sw.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return sw.Close()
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string, bom bool) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// resolvePath joins relative paths to the base directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
