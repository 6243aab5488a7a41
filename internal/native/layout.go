package native

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/dray/internal/target"
)

// VendorDirName is the vendor tree's directory name inside a package root.
const VendorDirName = "vendor"

// legacyGlobs match flat-file binaries from the pre-vendor-tree layout that
// lived directly in bin/.
var legacyGlobs = []string{target.ToolName + "-*", "rg-*"}

// ValidationError reports vendor entries that are absent or not executable.
type ValidationError struct {
	Missing []target.Triple
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Missing))
	for i, tr := range e.Missing {
		names[i] = string(tr)
	}
	return fmt.Sprintf("vendor tree is missing usable binaries for: %s", strings.Join(names, ", "))
}

// VendorPath returns the canonical location of a target's installed binary.
func VendorPath(vendorDir string, tr target.Triple) string {
	return filepath.Join(vendorDir, string(tr), target.ToolName, tr.BinaryName())
}

// ResetLayout deletes the vendor tree (a missing tree counts as success),
// sweeps legacy binaries out of the sibling bin/ directory, and recreates an
// empty vendor directory. Must run before a fresh install so no binary from
// a previous version survives.
func ResetLayout(vendorDir string, targets []target.Triple) error {
	binDir := filepath.Join(filepath.Dir(vendorDir), "bin")

	// Legacy cleanup is best effort, matching the old layouts it removes:
	// flat files like bin/cub-<triple> and per-triple bin/<triple>/ trees.
	for _, pattern := range legacyGlobs {
		matches, err := filepath.Glob(filepath.Join(binDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to scan for legacy binaries: %w", err)
		}
		for _, match := range matches {
			if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
				_ = os.Remove(match)
			}
		}
	}
	for _, tr := range targets {
		_ = os.RemoveAll(filepath.Join(binDir, string(tr)))
	}

	if err := os.RemoveAll(vendorDir); err != nil {
		return fmt.Errorf("failed to remove vendor directory: %w", err)
	}
	if err := os.MkdirAll(vendorDir, 0o755); err != nil {
		return fmt.Errorf("failed to create vendor directory: %w", err)
	}
	return nil
}

// Validate confirms every target's vendor entry is present, a regular file,
// and executable on non-Windows targets.
func Validate(vendorDir string, targets []target.Triple) error {
	var missing []target.Triple
	for _, tr := range targets {
		info, err := os.Stat(VendorPath(vendorDir, tr))
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, tr)
			continue
		}
		if !tr.IsWindows() && info.Mode().Perm()&0o111 == 0 {
			missing = append(missing, tr)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
