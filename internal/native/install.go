package native

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dyluth/dray/internal/extract"
	"github.com/dyluth/dray/internal/target"
)

// ArtifactMissingError reports that a target's archive is absent from the
// downloaded artifact bundle.
type ArtifactMissingError struct {
	Target target.Triple
	Path   string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("expected artifact not found: %s", e.Path)
}

// Install extracts one native binary per target from a downloaded artifact
// bundle (laid out as <bundleDir>/<triple>/<archive-name>) into the vendor
// tree. Per-target installs run on a bounded worker pool. Every task runs to
// completion even when a sibling fails; the first failure is returned after
// all tasks drain, and entries that installed successfully stay in place.
// Re-running overwrites prior entries, so a failed install is recovered by a
// full re-run.
func Install(bundleDir, vendorDir string, targets []target.Triple) (map[target.Triple]string, error) {
	installed := make(map[target.Triple]string, len(targets))
	if len(targets) == 0 {
		return installed, nil
	}

	workers := len(targets)
	if n := runtime.NumCPU(); n < workers {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(workers)

	for _, tr := range targets {
		tr := tr
		g.Go(func() error {
			path, err := installOne(bundleDir, vendorDir, tr)
			if err != nil {
				return err
			}

			mu.Lock()
			installed[tr] = path
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return installed, nil
}

func installOne(bundleDir, vendorDir string, tr target.Triple) (string, error) {
	archivePath := filepath.Join(bundleDir, string(tr), tr.ArchiveName())
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return "", &ArtifactMissingError{Target: tr, Path: archivePath}
		}
		return "", fmt.Errorf("failed to stat artifact for %s: %w", tr, err)
	}

	dest := VendorPath(vendorDir, tr)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create vendor directory for %s: %w", tr, err)
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove stale binary for %s: %w", tr, err)
	}

	if err := extract.Extract(archivePath, extract.FormatZst, "", dest); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", tr.ArchiveName(), err)
	}

	if !tr.IsWindows() {
		if err := os.Chmod(dest, 0o755); err != nil {
			return "", fmt.Errorf("failed to mark %s executable: %w", dest, err)
		}
	}
	return dest, nil
}
