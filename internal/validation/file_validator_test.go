package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wqdash/internal/shared/testutil"
)

func TestValidateOutputDirectory(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)

	dir := filepath.Join(t.TempDir(), "reports", "2024")
	require.NoError(t, v.ValidateOutputDirectory(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidateArtifact(t *testing.T) {
	dir := t.TempDir()
	csvPath := testutil.WriteFile(t, dir, "records.csv", "Date,BOD5\n")
	txtPath := testutil.WriteFile(t, dir, "summary.txt", "text")
	xlsxPath := testutil.WriteFile(t, dir, "statistics.xlsx", "stub")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.csv"), 0755))

	tests := []struct {
		name     string
		path     string
		want     string
		wantErr  string
		notExist bool
	}{
		{name: "csv present", path: csvPath, want: csvPath},
		{name: "spreadsheet fallback", path: filepath.Join(dir, "statistics.csv"), want: xlsxPath},
		{name: "missing with no fallback", path: filepath.Join(dir, "absent.csv"), wantErr: "does not exist", notExist: true},
		{name: "directory", path: filepath.Join(dir, "folder.csv"), wantErr: "is a directory"},
		{name: "wrong extension", path: txtPath, wantErr: "not a CSV file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, handler := testutil.NewTestLogger(t)
			got, err := NewFileValidator(logger).ValidateArtifact(tt.path)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.notExist, errors.Is(err, os.ErrNotExist))
			assert.NotZero(t, handler.Count())
		})
	}
}
