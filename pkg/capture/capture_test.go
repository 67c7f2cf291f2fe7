package capture

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapture_MissingInput(t *testing.T) {
	tree := Capture(filepath.Join(t.TempDir(), "nope"), Limits{MaxFiles: 10, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 16, MaxPathBytes: 256})
	require.Contains(t, tree.Issues, "CAPTURE_INPUT_MISSING")
	require.Empty(t, tree.Entries)
}

func TestCapture_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	tree := Capture(path, Limits{MaxFiles: 10, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 16, MaxPathBytes: 256})
	require.Equal(t, KindFile, tree.Kind)
	require.Len(t, tree.Entries, 1)
	require.Equal(t, "hello.txt", tree.Entries[0].Path)
	require.NotEmpty(t, tree.RootDigest)
	require.NotEmpty(t, tree.CaptureDigest)
	require.False(t, tree.Truncated)
}

func TestCapture_DirectorySortedAndSymlinkSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("c"), 0o644))
	_ = os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link.txt"))

	tree := Capture(dir, Limits{MaxFiles: 100, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 16, MaxPathBytes: 256})
	require.Equal(t, KindDir, tree.Kind)

	var paths []string
	for _, e := range tree.Entries {
		paths = append(paths, e.Path)
	}
	require.Equal(t, []string{"a.txt", "b.txt", "sub/c.txt"}, paths)
	require.Contains(t, tree.Issues, "CAPTURE_SYMLINK_SKIPPED")
}

func TestCapture_DirectoryExceedsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	tree := Capture(dir, Limits{MaxFiles: 0, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 16, MaxPathBytes: 256})
	require.Equal(t, 0, tree.Totals.FileCount)
	require.Contains(t, tree.Issues, "CAPTURE_LIMIT_FILES")
	require.True(t, tree.Truncated)
	require.Contains(t, tree.Issues, "CAPTURE_TRUNCATED")
}

func TestCapture_ZipHappyPath(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "bundle.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("index.html")
	require.NoError(t, err)
	_, err = w.Write([]byte("<html></html>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	tree := Capture(zipPath, Limits{MaxFiles: 100, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 16, MaxPathBytes: 256})
	require.Equal(t, KindZip, tree.Kind)
	require.Len(t, tree.Entries, 1)
	require.Equal(t, "index.html", tree.Entries[0].Path)
}

func TestCapture_TamperedZipMissingEOCD(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "bad.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("a.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("a"))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	for i := len(raw) - 22; i < len(raw); i++ {
		raw[i] = 0
	}
	require.NoError(t, os.WriteFile(zipPath, raw, 0o644))

	tree := Capture(zipPath, Limits{MaxFiles: 100, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 16, MaxPathBytes: 256})
	require.Equal(t, []string{"ZIP_EOCD_MISSING"}, tree.Issues)
	require.Empty(t, tree.Entries)
}

func TestCapture_PathTraversalRejected(t *testing.T) {
	require.False(t, isPathSafe("../etc/passwd"))
	require.False(t, isPathSafe("a/../../b"))
	require.True(t, isPathSafe("a/b/c"))
}
