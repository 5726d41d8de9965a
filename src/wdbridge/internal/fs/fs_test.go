package fs

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkdirAll(t *testing.T) {
	dir := t.TempDir()
	fs := New()
	err := fs.MkdirAll(path.Join(dir, "foo/bar"))
	assert.NoError(t, err)

	info, err := os.Stat(path.Join(dir, "foo/bar"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileExists(t *testing.T) {
	fs := New()

	t.Run("exists", func(t *testing.T) {
		filePath := path.Join(t.TempDir(), "overrides.yaml")
		require.NoError(t, os.WriteFile(filePath, []byte("w3c: {}"), 0644))
		result, err := fs.FileExists(filePath)
		assert.NoError(t, err)
		assert.True(t, result)
	})

	t.Run("does not exist", func(t *testing.T) {
		result, err := fs.FileExists(path.Join(t.TempDir(), "missing.yaml"))
		assert.NoError(t, err)
		assert.False(t, result)
	})

	t.Run("directory", func(t *testing.T) {
		result, err := fs.FileExists(t.TempDir())
		assert.NoError(t, err)
		assert.False(t, result)
	})
}

func TestTempFileOpenRemove(t *testing.T) {
	fs := New()
	dir := t.TempDir()

	f, err := fs.TempFile(dir, "driver-*.log")
	require.NoError(t, err)
	_, err = f.WriteString("listening")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	opened, err := fs.Open(f.Name())
	require.NoError(t, err)
	require.NoError(t, opened.Close())

	assert.NoError(t, fs.Remove(f.Name()))
	_, err = fs.Open(f.Name())
	assert.True(t, os.IsNotExist(err))
}
