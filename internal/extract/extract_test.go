package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/dray/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractZst(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "cub-x86_64-unknown-linux-musl.zst")
	testutil.WriteZst(t, archive, []byte("native binary payload"))

	dest := filepath.Join(tmpDir, "out", "cub")
	require.NoError(t, Extract(archive, FormatZst, "", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "native binary payload", string(content))
}

func TestExtractZstIgnoresMember(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "cub.zst")
	testutil.WriteZst(t, archive, []byte("payload"))

	// zst archives are bare streams; a member path from a manifest is noise.
	dest := filepath.Join(tmpDir, "cub")
	require.NoError(t, Extract(archive, FormatZst, "some/member", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestExtractTarGz(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "ripgrep.tar.gz")
	testutil.WriteTarGz(t, archive, map[string][]byte{
		"ripgrep-14.1.1/README.md": []byte("docs"),
		"ripgrep-14.1.1/rg":        []byte("rg binary"),
	})

	dest := filepath.Join(tmpDir, "out", "rg")
	require.NoError(t, Extract(archive, FormatTarGz, "ripgrep-14.1.1/rg", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "rg binary", string(content))
}

func TestExtractZip(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "ripgrep.zip")
	testutil.WriteZip(t, archive, map[string][]byte{
		"ripgrep-14.1.1/rg.exe": []byte("rg windows binary"),
		"ripgrep-14.1.1/LICENSE": []byte("license"),
	})

	dest := filepath.Join(tmpDir, "out", "rg.exe")
	require.NoError(t, Extract(archive, FormatZip, "ripgrep-14.1.1/rg.exe", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "rg windows binary", string(content))
}

func TestExtractMemberNotFound(t *testing.T) {
	tests := []struct {
		name   string
		format string
		write  func(t *testing.T, path string)
	}{
		{
			name:   "tar.gz",
			format: FormatTarGz,
			write: func(t *testing.T, path string) {
				testutil.WriteTarGz(t, path, map[string][]byte{"other/file": []byte("x")})
			},
		},
		{
			name:   "zip",
			format: FormatZip,
			write: func(t *testing.T, path string) {
				testutil.WriteZip(t, path, map[string][]byte{"other/file": []byte("x")})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			archive := filepath.Join(tmpDir, "archive")
			tt.write(t, archive)

			dest := filepath.Join(tmpDir, "out", "rg")
			err := Extract(archive, tt.format, "missing/rg", dest)

			var notFound *MemberNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, "missing/rg", notFound.Member)

			// No partial destination file may be left behind.
			_, statErr := os.Stat(dest)
			assert.True(t, os.IsNotExist(statErr), "destination should not exist after a failed lookup")
		})
	}
}

func TestExtractMissingMember(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "archive.tar.gz")
	testutil.WriteTarGz(t, archive, map[string][]byte{"rg": []byte("x")})

	err := Extract(archive, FormatTarGz, "", filepath.Join(tmpDir, "rg"))

	var missing *MissingMemberError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, FormatTarGz, missing.Format)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "archive.xz")
	require.NoError(t, os.WriteFile(archive, []byte("data"), 0o644))

	err := Extract(archive, "xz", "member", filepath.Join(tmpDir, "out"))

	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "xz", unsupported.Format)
}

func TestExtractOverwritesExistingDestination(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "cub.zst")
	testutil.WriteZst(t, archive, []byte("new build"))

	dest := filepath.Join(tmpDir, "cub")
	require.NoError(t, os.WriteFile(dest, []byte("stale build"), 0o755))

	require.NoError(t, Extract(archive, FormatZst, "", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new build", string(content))
}
