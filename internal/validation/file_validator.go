package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"wqdash/internal/config"
)

// FileValidator checks the input artifacts and output directory of a
// report run before any work starts
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger.With(slog.String("component", "file_validator"))}
}

// ValidateArtifact checks a tabular artifact path. The path must name a
// .csv file; when that file is absent its spreadsheet sibling is accepted.
// It returns the path that will actually be read. A missing artifact error
// wraps os.ErrNotExist.
func (v *FileValidator) ValidateArtifact(path string) (string, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		v.logger.Error("Artifact is not a CSV file", slog.String("file", path), slog.String("extension", ext))
		return "", fmt.Errorf("artifact %s is not a CSV file (extension %q)", path, ext)
	}

	err := v.checkRegular(path)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	sibling := config.SpreadsheetSibling(path)
	if serr := v.checkRegular(sibling); serr == nil {
		v.logger.Info("Using spreadsheet artifact", slog.String("file", sibling))
		return sibling, nil
	}
	v.logger.Error("Artifact does not exist", slog.String("file", path), slog.String("fallback", sibling))
	return "", err
}

func (v *FileValidator) checkRegular(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("artifact %s does not exist: %w", path, os.ErrNotExist)
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case info.IsDir():
		v.logger.Error("Artifact path is a directory", slog.String("path", path))
		return fmt.Errorf("artifact %s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		v.logger.Error("Artifact is not readable", slog.String("file", path), slog.String("error", err.Error()))
		return fmt.Errorf("artifact %s is not readable: %w", path, err)
	}
	return f.Close()
}

// ValidateOutputDirectory creates dir when missing and proves it writable
// with a throwaway file
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		v.logger.Error("Output directory is not writable", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
