package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
}

func names(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestDiscovery_FindImages(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "visualizations")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.png"), 0755))
	createFiles(t, dir, "time_series.png", "Correlation.JPG", "notes.txt", "box.jpeg")

	d := NewDiscovery(base)
	files, err := d.FindImages("visualizations")
	require.NoError(t, err)

	assert.Equal(t, []string{"Correlation.JPG", "box.jpeg", "time_series.png"}, names(files))
	assert.Equal(t, filepath.Join(dir, "box.jpeg"), files[1].Path)
	assert.EqualValues(t, len("box.jpeg"), files[1].Size)
}

func TestDiscovery_FindImages_MissingDirectory(t *testing.T) {
	d := NewDiscovery(t.TempDir())
	files, err := d.FindImages("missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscovery_FindByExtension(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "b.csv", "a.CSV", "c.xlsx")

	d := NewDiscovery("/unused")
	files, err := d.FindByExtension(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.CSV", "b.csv"}, names(files))

	_, err = d.FindByExtension(filepath.Join(dir, "missing"), ".csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
