package ripgrep

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/dyluth/dray/internal/dotslash"
	"github.com/dyluth/dray/internal/extract"
	"github.com/dyluth/dray/internal/fetch"
	"github.com/dyluth/dray/internal/target"
)

// BinaryName is ripgrep's base filename.
const BinaryName = "rg"

// pathDirName is the subdirectory holding the binary under each triple,
// kept in step with what the launcher puts on PATH.
const pathDirName = "path"

// PlatformMissingError reports a manifest without an entry for a platform
// key the registry maps to.
type PlatformMissingError struct {
	Platform string
	Manifest string
}

func (e *PlatformMissingError) Error() string {
	return fmt.Sprintf("platform %q not found in manifest %s", e.Platform, e.Manifest)
}

// NoProvidersError reports a manifest platform with an empty provider list.
type NoProvidersError struct {
	Platform string
}

func (e *NoProvidersError) Error() string {
	return fmt.Sprintf("no providers listed for platform %q", e.Platform)
}

// Fetcher downloads ripgrep binaries described by a DotSlash manifest.
type Fetcher struct {
	client *fetch.Client
}

// NewFetcher returns a Fetcher with the standard download policy.
func NewFetcher() *Fetcher {
	return &Fetcher{client: fetch.NewClient()}
}

// DestPath returns the canonical location of a target's ripgrep binary
// under destDir.
func DestPath(destDir string, tr target.Triple) string {
	name := BinaryName
	if tr.IsWindows() {
		name += ".exe"
	}
	return filepath.Join(destDir, string(tr), pathDirName, name)
}

// Fetch installs ripgrep for each target into destDir, one binary at
// <destDir>/<triple>/path/rg[.exe], as described by the DotSlash manifest.
// Targets are fetched sequentially; the first failure aborts the run.
func (f *Fetcher) Fetch(ctx context.Context, manifestPath, destDir string, targets []target.Triple) ([]string, error) {
	if _, err := os.Stat(manifestPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("DotSlash manifest not found: %s", manifestPath)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", manifestPath, err)
	}

	manifest, err := dotslash.Parse(ctx, manifestPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	results := make([]string, 0, len(targets))
	for _, tr := range targets {
		dest, err := f.fetchOne(ctx, manifest, manifestPath, destDir, tr)
		if err != nil {
			return nil, err
		}
		results = append(results, dest)
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, manifest dotslash.Manifest, manifestPath, destDir string, tr target.Triple) (string, error) {
	key := tr.RipgrepPlatform()
	if key == "" {
		return "", fmt.Errorf("unsupported ripgrep target %q", tr)
	}

	platform, ok := manifest.Platforms[key]
	if !ok {
		return "", &PlatformMissingError{Platform: key, Manifest: manifestPath}
	}
	if len(platform.Providers) == 0 {
		return "", &NoProvidersError{Platform: key}
	}

	providerURL := platform.Providers[0].URL
	format := platform.Format
	if format == "" {
		format = extract.FormatZst
	}

	tmpDir, err := os.MkdirTemp("", "dray-rg-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, archiveFilename(providerURL))
	if err := f.client.Download(ctx, providerURL, archivePath); err != nil {
		return "", err
	}

	dest := DestPath(destDir, tr)
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove stale ripgrep for %s: %w", tr, err)
	}
	if err := extract.Extract(archivePath, format, platform.Path, dest); err != nil {
		return "", err
	}

	if !tr.IsWindows() {
		if err := os.Chmod(dest, 0o755); err != nil {
			return "", fmt.Errorf("failed to mark %s executable: %w", dest, err)
		}
	}
	return dest, nil
}

// archiveFilename derives a local filename from the provider URL's path.
func archiveFilename(providerURL string) string {
	parsed, err := url.Parse(providerURL)
	if err != nil || path.Base(parsed.Path) == "." || path.Base(parsed.Path) == "/" {
		return "archive"
	}
	return path.Base(parsed.Path)
}
