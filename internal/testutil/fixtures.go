package testutil

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// WriteZst writes content to path as a single zstd-compressed stream.
func WriteZst(t *testing.T, path string, content []byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err, "Failed to create zst fixture")
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write(content)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
}

// WriteTarGz writes entries (member name → content) to path as a
// gzip-compressed tarball with deterministic entry order.
func WriteTarGz(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err, "Failed to create tar.gz fixture")
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, name := range sortedKeys(entries) {
		content := entries[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o755,
			Size: int64(len(content)),
		}))
		_, err = tw.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

// WriteZip writes entries (member name → content) to path as a zip archive.
func WriteZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err, "Failed to create zip fixture")
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range sortedKeys(entries) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

// Chdir changes the working directory to dir for the duration of the test,
// restoring the original directory during cleanup.
func Chdir(t *testing.T, dir string) {
	t.Helper()

	oldWd, err := os.Getwd()
	require.NoError(t, err, "Failed to read working directory")
	require.NoError(t, os.Chdir(dir), "Failed to change working directory")
	t.Cleanup(func() {
		if err := os.Chdir(oldWd); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	})
}

// FakeExecutable writes an executable shell script named name into dir and
// returns its path. Combine with PrependPath to stub out external tools.
func FakeExecutable(t *testing.T, dir, name, script string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// PrependPath puts dir at the front of PATH for the duration of the test.
func PrependPath(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
