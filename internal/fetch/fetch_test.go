package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "artifacts", "cub.zst")
	require.NoError(t, NewClient().Download(context.Background(), server.URL, dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(content))
}

func TestDownloadNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "cub.zst")
	err := NewClient().Download(context.Background(), server.URL, dest)

	var downloadErr *DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, http.StatusNotFound, downloadErr.StatusCode)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no file should be written on a failed download")
}

func TestDownloadLeavesNoTempFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "cub.zst")
	require.NoError(t, NewClient().Download(context.Background(), server.URL, dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "."), "temp file %s left behind", entry.Name())
	}
}
