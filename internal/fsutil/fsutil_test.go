package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"prep.yml", "train.hcl", "notes.txt", "nested/score.yaml"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	files, err := FindFilesByExtension(root, ".yml", ".yaml", ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "prep.yml"),
		filepath.Join(root, "train.hcl"),
	}, files, "nested files are not listed")

	_, err = FindFilesByExtension(filepath.Join(root, "missing"), ".yml")
	assert.Error(t, err)

	assert.Panics(t, func() { _, _ = FindFilesByExtension(root) })
	assert.Panics(t, func() { _, _ = FindFilesByExtension(root, "") })
}

func TestStem(t *testing.T) {
	assert.Equal(t, "prep", Stem("/a/b/prep.yml"))
	assert.Equal(t, "train", Stem("train.hcl"))
	assert.Equal(t, "noext", Stem("noext"))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_id.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	err = WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "out.txt"), []byte("x"))
	assert.ErrorContains(t, err, "failed to create temp file")
}
