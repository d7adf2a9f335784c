package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Tokens looked up in the analysis summary
const (
	TokenTrend          = "trend"
	TokenCorrelation    = "correlation"
	TokenSignificant    = "significant"
	TokenRecommendation = "recommendation"
)

// SummaryTokens returns the tokens extracted for the insights view
func SummaryTokens() []string {
	return []string{TokenTrend, TokenCorrelation, TokenSignificant, TokenRecommendation}
}

// SummaryExtractor pulls short fragments out of free text. It reports
// false instead of inventing content when nothing matches.
type SummaryExtractor interface {
	Extract(text, token string) (string, bool)
}

// RegexSummaryExtractor returns the text following the first
// case-insensitive occurrence of a token, up to the next period
type RegexSummaryExtractor struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewRegexSummaryExtractor creates an extractor with an empty pattern cache
func NewRegexSummaryExtractor() *RegexSummaryExtractor {
	return &RegexSummaryExtractor{patterns: make(map[string]*regexp.Regexp)}
}

func (e *RegexSummaryExtractor) pattern(token string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := strings.ToLower(token)
	re, ok := e.patterns[key]
	if !ok {
		// the token may be followed by a plural or other word ending
		re = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(token) + `[a-z]*([^.]*)`)
		e.patterns[key] = re
	}
	return re
}

// Extract implements SummaryExtractor
func (e *RegexSummaryExtractor) Extract(text, token string) (string, bool) {
	if strings.TrimSpace(token) == "" || text == "" {
		return "", false
	}
	m := e.pattern(token).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	frag := strings.TrimSpace(strings.TrimLeft(m[1], ": -\t\r\n"))
	frag = strings.Join(strings.Fields(frag), " ")
	if frag == "" {
		return "", false
	}
	return frag, true
}

// ExtractAll runs x for every summary token and keeps the matches
func ExtractAll(x SummaryExtractor, text string) map[string]string {
	out := make(map[string]string)
	if x == nil {
		return out
	}
	for _, token := range SummaryTokens() {
		if frag, ok := x.Extract(text, token); ok {
			out[token] = frag
		}
	}
	return out
}

// LoadSummary reads the narrative summary artifact. A missing or
// unreadable file logs a warning and yields empty text.
func LoadSummary(ctx context.Context, path string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.WarnContext(ctx, "Analysis summary unavailable",
			slog.String("component", "summary_loader"),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: summary: %v", ErrArtifactUnavailable, err)
	}
	return string(data), nil
}
