package stage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/dray/internal/native"
	"github.com/dyluth/dray/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureManifest = `{
  "name": "@dyluth/cub",
  "version": "0.0.0-dev",
  "license": "Apache-2.0",
  "bin": {
    "cub": "bin/cub.js"
  }
}
`

// writePackageRoot builds a minimal package source tree: manifest,
// launcher, rg manifest and README.
func writePackageRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestName), []byte(fixtureManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", LauncherName), []byte("#!/usr/bin/env node\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "rg"), []byte("#!/usr/bin/env dotslash\n{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# cub\n"), 0o644))
	return root
}

// writeVendor populates a vendor tree with cub and rg binaries for the
// given triples.
func writeVendor(t *testing.T, triples []target.Triple) string {
	t.Helper()

	vendorDir := t.TempDir()
	for _, tr := range triples {
		cub := native.VendorPath(vendorDir, tr)
		require.NoError(t, os.MkdirAll(filepath.Dir(cub), 0o755))
		mode := os.FileMode(0o644)
		if !tr.IsWindows() {
			mode = 0o755
		}
		require.NoError(t, os.WriteFile(cub, []byte("cub for "+string(tr)), mode))

		rg := filepath.Join(vendorDir, string(tr), "path", "rg")
		require.NoError(t, os.MkdirAll(filepath.Dir(rg), 0o755))
		require.NoError(t, os.WriteFile(rg, []byte("rg for "+string(tr)), mode))
	}
	return vendorDir
}

func TestAssembleFull(t *testing.T) {
	packageRoot := writePackageRoot(t)
	vendorDir := writeVendor(t, target.All())
	destDir := filepath.Join(t.TempDir(), "staging")

	require.NoError(t, AssembleFull("1.2.3", packageRoot, vendorDir, destDir))

	// Launcher keeps its executable bit.
	info, err := os.Stat(filepath.Join(destDir, "bin", LauncherName))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)

	// rg manifest and README ride along.
	_, err = os.Stat(filepath.Join(destDir, "bin", "rg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "README.md"))
	assert.NoError(t, err)

	// Every triple's vendor subtree is copied verbatim.
	for _, tr := range target.All() {
		content, err := os.ReadFile(native.VendorPath(filepath.Join(destDir, native.VendorDirName), tr))
		require.NoError(t, err)
		assert.Equal(t, "cub for "+string(tr), string(content))

		_, err = os.Stat(filepath.Join(destDir, native.VendorDirName, string(tr), "path", "rg"))
		assert.NoError(t, err)
	}
}

func TestAssembleFullStampsVersion(t *testing.T) {
	packageRoot := writePackageRoot(t)
	vendorDir := writeVendor(t, target.All())
	destDir := filepath.Join(t.TempDir(), "staging")

	require.NoError(t, AssembleFull("2.0.1", packageRoot, vendorDir, destDir))

	raw, err := os.ReadFile(filepath.Join(destDir, ManifestName))
	require.NoError(t, err)

	var manifest map[string]any
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "2.0.1", manifest["version"])
	assert.Equal(t, "@dyluth/cub", manifest["name"], "unrelated fields must survive stamping")
	assert.Equal(t, "Apache-2.0", manifest["license"])

	text := string(raw)
	assert.True(t, strings.HasSuffix(text, "\n"), "manifest should end with a newline")
	assert.Contains(t, text, "  \"version\": \"2.0.1\"", "manifest should be two-space indented")
}

func TestAssembleFullRejectsNonEmptyDir(t *testing.T) {
	packageRoot := writePackageRoot(t)
	vendorDir := writeVendor(t, target.All())
	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "leftover"), []byte("x"), 0o644))

	err := AssembleFull("1.2.3", packageRoot, vendorDir, destDir)

	var notEmpty *NotEmptyError
	require.ErrorAs(t, err, &notEmpty)
	assert.Equal(t, destDir, notEmpty.Dir)
}

func TestAssembleSlice(t *testing.T) {
	packageRoot := writePackageRoot(t)
	vendorDir := writeVendor(t, target.All())
	destDir := filepath.Join(t.TempDir(), "slice")

	require.NoError(t, AssembleSlice("1.2.3", packageRoot, vendorDir, "linux-x64", destDir))

	family, err := target.FamilyTriples("linux-x64")
	require.NoError(t, err)

	// Exactly the family's triples, same relative subpaths.
	inFamily := make(map[target.Triple]bool)
	for _, tr := range family {
		inFamily[tr] = true
		_, err := os.Stat(native.VendorPath(filepath.Join(destDir, native.VendorDirName), tr))
		assert.NoError(t, err, "family triple %s should be staged", tr)
		_, err = os.Stat(filepath.Join(destDir, native.VendorDirName, string(tr), "path", "rg"))
		assert.NoError(t, err)
	}
	for _, tr := range target.All() {
		if inFamily[tr] {
			continue
		}
		_, err := os.Stat(filepath.Join(destDir, native.VendorDirName, string(tr)))
		assert.True(t, os.IsNotExist(err), "triple %s does not belong in a linux-x64 slice", tr)
	}

	// Manifest and launcher are staged the same as for a full package.
	raw, err := os.ReadFile(filepath.Join(destDir, ManifestName))
	require.NoError(t, err)
	var manifest map[string]any
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "1.2.3", manifest["version"])

	_, err = os.Stat(filepath.Join(destDir, "bin", LauncherName))
	assert.NoError(t, err)
}

func TestAssembleSliceIncompleteVendorTree(t *testing.T) {
	packageRoot := writePackageRoot(t)
	// Vendor tree holds darwin binaries only.
	vendorDir := writeVendor(t, []target.Triple{"x86_64-apple-darwin", "aarch64-apple-darwin"})
	destDir := filepath.Join(t.TempDir(), "slice")

	err := AssembleSlice("1.2.3", packageRoot, vendorDir, "linux-x64", destDir)

	var incomplete *IncompleteSliceError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, target.Family("linux-x64"), incomplete.Family)
	assert.Equal(t, []target.Triple{"x86_64-unknown-linux-musl"}, incomplete.Missing)

	// Fail-fast means nothing was staged.
	_, statErr := os.Stat(filepath.Join(destDir, ManifestName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssembleSliceUnknownFamily(t *testing.T) {
	packageRoot := writePackageRoot(t)
	vendorDir := writeVendor(t, target.All())

	err := AssembleSlice("1.2.3", packageRoot, vendorDir, "solaris-sparc", filepath.Join(t.TempDir(), "slice"))
	assert.Error(t, err)
}

func TestAssembleDoesNotMutateSourceVendorTree(t *testing.T) {
	packageRoot := writePackageRoot(t)
	vendorDir := writeVendor(t, target.All())

	require.NoError(t, AssembleFull("1.2.3", packageRoot, vendorDir, filepath.Join(t.TempDir(), "full")))
	require.NoError(t, AssembleSlice("1.2.3", packageRoot, vendorDir, "win32-arm64", filepath.Join(t.TempDir(), "slice")))

	// Source tree still validates for all targets.
	assert.NoError(t, native.Validate(vendorDir, target.All()))
}
