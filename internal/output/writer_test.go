package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriter_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "css", "main.min.css")

	w := NewFileWriter()
	data := []byte("body{margin:0}")
	require.NoError(t, w.Write(path, data))

	// Verify file exists with correct content.
	got, err := os.ReadFile(path) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got))

	// Verify file permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileWriter_CreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "nested", "index.html")

	w := NewFileWriter()
	require.NoError(t, w.Write(path, []byte("test")))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestFileWriter_CustomPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.js")

	w := NewFileWriter(WithPermissions(0o600))
	require.NoError(t, w.Write(path, []byte("secret")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileWriter_OverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.html")

	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644)) //nolint:gosec // test

	w := NewFileWriter()
	require.NoError(t, w.Write(path, []byte("new")))

	got, err := os.ReadFile(path) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestFileWriter_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()

	w := NewFileWriter()
	require.NoError(t, w.Write(filepath.Join(dir, "a.txt"), []byte("a")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())
}

func TestFileWriter_Copy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "font.woff")
	require.NoError(t, os.WriteFile(src, []byte{0x77, 0x4f, 0x46, 0x46}, 0o644))

	dst := filepath.Join(dir, "dist", "font", "font.woff")
	w := NewFileWriter()
	require.NoError(t, w.Copy(dst, src))

	got, err := os.ReadFile(dst) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, []byte{0x77, 0x4f, 0x46, 0x46}, got)
}

func TestFileWriter_CopyMissingSource(t *testing.T) {
	w := NewFileWriter()
	err := w.Copy(filepath.Join(t.TempDir(), "out"), "/nonexistent/file.ttf")
	assert.ErrorContains(t, err, "opening")
}

func TestFileWriter_InvalidPath(t *testing.T) {
	w := NewFileWriter()
	err := w.Write("/dev/null/impossible/path.html", []byte("data"))
	assert.Error(t, err)
}
