package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths is the resolved directory layout of one instance:
//
//	<executable dir>/
//	  data/
//	    visualizations/  pre-rendered images, owned by the offline step
//	    charts/          PNG charts written by the dashboard
//	  logs/
type Paths struct {
	ExecutableDir string
	DataDir       string
	AssetsDir     string
	ChartsDir     string
	LogsDir       string
}

// ExecutableDir returns the directory of the running binary with symlinks
// resolved. Relative configuration paths are anchored here, never at the
// working directory.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// ResolvedPaths returns the absolute directories named by c
func (c *Config) ResolvedPaths() *Paths {
	return &Paths{
		ExecutableDir: c.Paths.ExecutableDir,
		DataDir:       c.GetDataDir(),
		AssetsDir:     c.AssetsPath(),
		ChartsDir:     c.ChartsPath(),
		LogsDir:       c.GetLogsDir(),
	}
}

// EnsureDirectories creates the directories the server writes to. The
// assets directory is left alone.
func (p *Paths) EnsureDirectories(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{p.DataDir, p.ChartsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// LogPathResolution logs the resolved layout once at startup
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("assets", p.AssetsDir),
			slog.String("charts", p.ChartsDir),
			slog.String("logs", p.LogsDir),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// SpreadsheetSibling returns path with its extension replaced by .xlsx
func SpreadsheetSibling(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + SpreadsheetExtension
}
