package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestSyncOutputMirror(t *testing.T) {
	pages := t.TempDir()
	out := t.TempDir()
	writeTree(t, pages, map[string]string{"a.html": "a", "b.html": "b", ".git/HEAD": "ref"})
	writeTree(t, out, map[string]string{"a.html": "a", "c.html": "c"})

	stats, err := syncOutput(pages, out, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.deleted)
	assert.Equal(t, 2, stats.files)

	_, err = os.Stat(filepath.Join(pages, "b.html"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(pages, "c.html"))
	assert.NoError(t, err)
	// The git metadata must survive mirroring.
	_, err = os.Stat(filepath.Join(pages, ".git", "HEAD"))
	assert.NoError(t, err)
}

func TestSyncOutputMerge(t *testing.T) {
	pages := t.TempDir()
	out := t.TempDir()
	writeTree(t, pages, map[string]string{"a.html": "a", "b.html": "b"})
	writeTree(t, out, map[string]string{"a.html": "a2", "c.html": "c"})

	stats, err := syncOutput(pages, out, true)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.deleted)
	assert.Equal(t, 3, stats.files)

	data, err := os.ReadFile(filepath.Join(pages, "a.html"))
	require.NoError(t, err)
	assert.Equal(t, "a2", string(data), "merge mode still overwrites same-named files")

	_, err = os.Stat(filepath.Join(pages, "b.html"))
	assert.NoError(t, err)
}

func TestSyncOutputNestedDirectories(t *testing.T) {
	pages := t.TempDir()
	out := t.TempDir()
	writeTree(t, out, map[string]string{"pool/struct.Pool.html": "x", "pool/fn.new.html": "y"})

	stats, err := syncOutput(pages, out, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.files)
	_, err = os.Stat(filepath.Join(pages, "pool", "struct.Pool.html"))
	assert.NoError(t, err)
}

func TestListFilesMissingRoot(t *testing.T) {
	files, err := listFiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
