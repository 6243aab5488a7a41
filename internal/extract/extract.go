package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Archive formats understood by Extract. The values match the format names
// used by release artifacts and DotSlash manifests.
const (
	FormatZst   = "zst"
	FormatTarGz = "tar.gz"
	FormatZip   = "zip"
)

// UnsupportedFormatError reports a format Extract does not understand.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported archive format %q", e.Format)
}

// MemberNotFoundError reports that the requested entry is absent from a
// tar.gz or zip archive.
type MemberNotFoundError struct {
	Member  string
	Archive string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("entry %q not found in archive %s", e.Member, e.Archive)
}

// MissingMemberError reports that a container format was given no entry
// path to extract.
type MissingMemberError struct {
	Format string
}

func (e *MissingMemberError) Error() string {
	return fmt.Sprintf("archive format %q requires a member path", e.Format)
}

// Extract writes exactly one file from archivePath to destPath.
//
// For "zst" the whole stream is decompressed and member is ignored. For
// "tar.gz" and "zip" member names the single entry to copy out. The
// destination's parent directories are created, an existing destination is
// overwritten, and the destination only ever appears fully written: on any
// error no partial file is left behind. Executable permission is the
// caller's responsibility.
func Extract(archivePath, format, member, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	switch format {
	case FormatZst:
		return extractZst(archivePath, destPath)
	case FormatTarGz:
		if member == "" {
			return &MissingMemberError{Format: format}
		}
		return extractTarGz(archivePath, member, destPath)
	case FormatZip:
		if member == "" {
			return &MissingMemberError{Format: format}
		}
		return extractZip(archivePath, member, destPath)
	default:
		return &UnsupportedFormatError{Format: format}
	}
}

func extractZst(archivePath, destPath string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read zst stream %s: %w", archivePath, err)
	}
	defer dec.Close()

	return writeDest(destPath, dec.IOReadCloser())
}

func extractTarGz(archivePath, member, destPath string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read gzip stream %s: %w", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return &MemberNotFoundError{Member: member, Archive: archivePath}
		}
		if err != nil {
			return fmt.Errorf("failed to read tar stream %s: %w", archivePath, err)
		}
		if hdr.Name == member {
			return writeDest(destPath, io.NopCloser(tr))
		}
	}
}

func extractZip(archivePath, member, destPath string) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer archive.Close()

	for _, f := range archive.File {
		if f.Name != member {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open entry %q in %s: %w", member, archivePath, err)
		}
		return writeDest(destPath, src)
	}

	return &MemberNotFoundError{Member: member, Archive: archivePath}
}

// writeDest streams src into destPath via a sibling temp file so the
// destination never exists half-written. Closes src.
func writeDest(destPath string, src io.ReadCloser) error {
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", destPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", destPath, err)
	}
	return nil
}
