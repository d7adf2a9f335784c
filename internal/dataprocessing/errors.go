package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema matches any *SchemaError
	ErrSchema = errors.New("schema error")

	// ErrArtifactUnavailable wraps failures to read an optional artifact
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrEmptyInput is returned for input without a header row
	ErrEmptyInput = errors.New("empty input")
)

// SchemaError reports required columns missing from a header row
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// Is lets errors.Is(err, ErrSchema) match
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
