package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/xuri/excelize/v2"

	"wqdash/internal/analytics"
	"wqdash/internal/config"
	"wqdash/pkg/contracts/domain"
)

// statAliases maps lower-case statistic headers to canonical names
var statAliases = map[string]string{
	"count":   domain.StatCount,
	"mean":    domain.StatMean,
	"average": domain.StatMean,
	"avg":     domain.StatMean,
	"median":  domain.StatMedian,
	"50%":     domain.StatMedian,
	"std":     domain.StatStd,
	"std_dev": domain.StatStd,
	"stddev":  domain.StatStd,
	"min":     domain.StatMin,
	"minimum": domain.StatMin,
	"max":     domain.StatMax,
	"maximum": domain.StatMax,
	"range":   domain.StatRange,
}

// StatisticsStore holds the pre-computed statistics artifact. A failed
// load leaves it empty; Resolve then computes the values from records.
type StatisticsStore struct {
	mu      sync.RWMutex
	entries domain.Statistics
	logger  *slog.Logger
}

// NewStatisticsStore creates an empty store
func NewStatisticsStore(logger *slog.Logger) *StatisticsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatisticsStore{
		entries: domain.Statistics{},
		logger:  logger.With(slog.String("component", "statistics_store")),
	}
}

// Load replaces the store contents with the artifact at path. It is Read
// followed by Commit, so a failed read empties the store.
func (s *StatisticsStore) Load(ctx context.Context, path string) error {
	stats, err := s.Read(ctx, path)
	s.Commit(stats)
	return err
}

// Read parses the artifact at path without touching the store, reading
// the .xlsx sibling when the CSV is missing. On failure a warning is
// logged and an error wrapping ErrArtifactUnavailable is returned for the
// caller to count; it is never fatal.
func (s *StatisticsStore) Read(ctx context.Context, path string) (domain.Statistics, error) {
	stats, err := s.read(ctx, path)
	if err != nil {
		s.logger.WarnContext(ctx, "Statistics artifact unavailable, values will be computed from records",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: statistics: %v", ErrArtifactUnavailable, err)
	}

	s.logger.InfoContext(ctx, "Read statistics artifact",
		slog.String("path", path),
		slog.Int("parameters", len(stats)))
	return stats, nil
}

// Commit replaces the store contents with stats. A nil value empties the
// store.
func (s *StatisticsStore) Commit(stats domain.Statistics) {
	if stats == nil {
		stats = domain.Statistics{}
	}
	s.reset(stats)
}

// LoadReader parses CSV statistics from r with the same failure rules as
// Load
func (s *StatisticsStore) LoadReader(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err == nil {
		var stats domain.Statistics
		if stats, err = parseStatisticsRows(splitLines(string(data))); err == nil {
			s.reset(stats)
			return nil
		}
	}
	s.reset(domain.Statistics{})
	s.logger.WarnContext(ctx, "Statistics artifact unreadable", slog.String("error", err.Error()))
	return fmt.Errorf("%w: statistics: %v", ErrArtifactUnavailable, err)
}

func (s *StatisticsStore) read(ctx context.Context, path string) (domain.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err == nil {
		return parseStatisticsRows(splitLines(string(data)))
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	sibling := config.SpreadsheetSibling(path)
	if !config.FileExists(sibling) {
		return nil, err
	}
	f, xerr := excelize.OpenFile(sibling)
	if xerr != nil {
		return nil, xerr
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	rows, xerr := f.GetRows(sheets[0])
	if xerr != nil {
		return nil, xerr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseStatisticsRows(rows)
}

func (s *StatisticsStore) reset(stats domain.Statistics) {
	s.mu.Lock()
	s.entries = stats
	s.mu.Unlock()
}

// Available reports whether an artifact was loaded
func (s *StatisticsStore) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) > 0
}

// Lookup returns one loaded statistic
func (s *StatisticsStore) Lookup(param domain.Parameter, stat string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Get(string(param), stat)
}

// Entries returns a copy of the loaded statistics
func (s *StatisticsStore) Entries() domain.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Clone()
}

// Resolve returns the loaded statistics, or statistics computed from
// records when no artifact is loaded
func (s *StatisticsStore) Resolve(records []domain.Record) domain.StatisticsPanel {
	if s.Available() {
		return domain.StatisticsPanel{Source: domain.SourceArtifact, Values: s.Entries()}
	}
	if len(records) == 0 {
		return domain.StatisticsPanel{Source: domain.SourceNone, Values: domain.Statistics{}}
	}
	return domain.StatisticsPanel{Source: domain.SourceComputed, Values: analytics.ComputeStatistics(records)}
}

// parseStatisticsRows reads a table whose first column names parameters
// and whose header names statistics. A table written the other way round,
// with parameters across the header, is transposed first.
func parseStatisticsRows(rows [][]string) (domain.Statistics, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyInput
	}
	if len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}

	if headerNamesParameters(rows) {
		rows = transpose(rows)
	}

	header := rows[0]
	stats := domain.Statistics{}
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		param := canonicalParameter(row[0])
		if param == "" {
			continue
		}
		for j := 1; j < len(row) && j < len(header); j++ {
			v, ok := parseValue(row[j])
			if !ok {
				continue
			}
			stats.Set(param, canonicalStat(header[j]), v)
		}
	}

	if len(stats) == 0 {
		return nil, fmt.Errorf("no numeric statistics found")
	}
	return stats, nil
}

func headerNamesParameters(rows [][]string) bool {
	for _, row := range rows[1:] {
		if len(row) > 0 && matchParameter(row[0]) != "" {
			return false
		}
	}
	for _, h := range rows[0][1:] {
		if matchParameter(h) != "" {
			return true
		}
	}
	return false
}

func transpose(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	out := make([][]string, width)
	for j := range out {
		out[j] = make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				out[j][i] = r[j]
			}
		}
	}
	return out
}

// matchParameter recognises parameter names such as "BOD5",
// "bod5_proportion" or "Proportion SS". SS must stand as its own word so
// labels like "Class" stay unmatched.
func matchParameter(name string) domain.Parameter {
	n := normalizeName(name)
	switch {
	case n == "":
		return ""
	case strings.Contains(n, "BOD5"):
		return domain.ParamBOD5
	case strings.Contains(n, "NH3N"):
		return domain.ParamNH3N
	case n == "SS" || n == "PROPORTIONSS" || hasWord(name, "SS"):
		return domain.ParamSS
	}
	return ""
}

// hasWord reports whether word appears in s as a run of letters and
// digits, ignoring case
func hasWord(s, word string) bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

func canonicalParameter(name string) string {
	if p := matchParameter(name); p != "" {
		return string(p)
	}
	return strings.TrimSpace(name)
}

func canonicalStat(name string) string {
	name = strings.TrimSpace(name)
	if c, ok := statAliases[strings.ToLower(name)]; ok {
		return c
	}
	return name
}

func splitLines(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, delimiter))
	}
	return rows
}
