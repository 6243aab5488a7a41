package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/dray/internal/native"
	"github.com/dyluth/dray/internal/target"
)

const (
	// ManifestName is the package manifest staged into every package.
	ManifestName = "package.json"
	// LauncherName is the Node shim that picks the right vendored binary.
	LauncherName = target.ToolName + ".js"

	readmeName     = "README.md"
	rgManifestName = "rg"
)

// NotEmptyError reports a caller-supplied staging directory that already
// has content.
type NotEmptyError struct {
	Dir string
}

func (e *NotEmptyError) Error() string {
	return fmt.Sprintf("staging directory %s is not empty", e.Dir)
}

// IncompleteSliceError reports a slice request against a vendor tree that
// is missing some of the family's targets.
type IncompleteSliceError struct {
	Family  target.Family
	Missing []target.Triple
}

func (e *IncompleteSliceError) Error() string {
	names := make([]string, len(e.Missing))
	for i, tr := range e.Missing {
		names[i] = string(tr)
	}
	return fmt.Sprintf("cannot assemble %s slice: vendor tree is missing %s", e.Family, strings.Join(names, ", "))
}

// AssembleFull stages a complete package into destDir: launcher, manifest
// with the version stamped in, and a verbatim copy of the vendor tree.
// destDir must be empty (or absent; it is created).
func AssembleFull(version, packageRoot, vendorDir, destDir string) error {
	if err := ensureEmptyDir(destDir); err != nil {
		return err
	}
	if err := stageSources(version, packageRoot, destDir); err != nil {
		return err
	}
	return copyTree(vendorDir, filepath.Join(destDir, native.VendorDirName))
}

// AssembleSlice stages a package restricted to one platform family: the
// same launcher and stamped manifest, but only the family's vendor
// subtrees, with their relative paths preserved. The source vendor tree
// must already hold every one of the family's targets.
func AssembleSlice(version, packageRoot, vendorDir string, family target.Family, destDir string) error {
	triples, err := target.FamilyTriples(family)
	if err != nil {
		return err
	}

	// Never produce a partial slice.
	if err := native.Validate(vendorDir, triples); err != nil {
		var validationErr *native.ValidationError
		if errors.As(err, &validationErr) {
			return &IncompleteSliceError{Family: family, Missing: validationErr.Missing}
		}
		return err
	}

	if err := ensureEmptyDir(destDir); err != nil {
		return err
	}
	if err := stageSources(version, packageRoot, destDir); err != nil {
		return err
	}

	for _, tr := range triples {
		src := filepath.Join(vendorDir, string(tr))
		dst := filepath.Join(destDir, native.VendorDirName, string(tr))
		if err := copyTree(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// stageSources copies the launcher, the rg manifest and README when
// present, and writes the package manifest with version stamped in.
func stageSources(version, packageRoot, destDir string) error {
	binDir := filepath.Join(destDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}

	launcher := filepath.Join(packageRoot, "bin", LauncherName)
	if err := copyFile(launcher, filepath.Join(binDir, LauncherName)); err != nil {
		return fmt.Errorf("failed to stage launcher: %w", err)
	}

	rgManifest := filepath.Join(packageRoot, "bin", rgManifestName)
	if _, err := os.Stat(rgManifest); err == nil {
		if err := copyFile(rgManifest, filepath.Join(binDir, rgManifestName)); err != nil {
			return fmt.Errorf("failed to stage rg manifest: %w", err)
		}
	}

	readme := filepath.Join(packageRoot, readmeName)
	if _, err := os.Stat(readme); err == nil {
		if err := copyFile(readme, filepath.Join(destDir, readmeName)); err != nil {
			return fmt.Errorf("failed to stage README: %w", err)
		}
	}

	return stampManifest(version, filepath.Join(packageRoot, ManifestName), filepath.Join(destDir, ManifestName))
}

// stampManifest rewrites the package manifest with the version field
// overwritten, two-space indented, with a trailing newline.
func stampManifest(version, srcPath, destPath string) error {
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ManifestName, err)
	}

	var manifest map[string]any
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", ManifestName, err)
	}
	manifest["version"] = version

	stamped, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", ManifestName, err)
	}
	stamped = append(stamped, '\n')

	if err := os.WriteFile(destPath, stamped, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ManifestName, err)
	}
	return nil
}

// ensureEmptyDir creates dir if needed and rejects it when non-empty.
func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create staging directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to read staging directory: %w", err)
	}
	if len(entries) > 0 {
		return &NotEmptyError{Dir: dir}
	}
	return nil
}

// copyTree copies the directory tree at src to dst, preserving relative
// paths and file modes. The source is only ever read.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0o755)
		}
		return copyFile(path, targetPath)
	})
}

// copyFile copies one regular file, preserving its permission bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
