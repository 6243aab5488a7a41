package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/dyluth/dray/internal/config"
	"github.com/dyluth/dray/internal/native"
	"github.com/dyluth/dray/internal/npm"
	"github.com/dyluth/dray/internal/printer"
	"github.com/dyluth/dray/internal/stage"
	"github.com/dyluth/dray/internal/target"
	"github.com/spf13/cobra"
)

var (
	stageVersion     string
	stageWorkflowURL string
	stageStagingDir  string
	stagePackOutput  string
	stageSlices      []string
	stageVendorDir   string
	stageRGTargets   []string
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Assemble the npm package for a version",
	Long: `Assemble a publishable npm package directory for a release version.

Staging stamps the version into package.json, copies the launcher and
ripgrep manifest, and populates the vendor tree. Without --vendor-dir a
fresh vendor tree is installed first (see 'dray vendor'). Without
--staging-dir a temp directory is created and preserved so the staged
package can be inspected.

Packing only happens when --pack-output is set. Each --slice FAMILY
additionally packs a per-platform package next to the full tarball,
named by inserting -FAMILY before the extension.

Examples:
  # Stage into a preserved temp dir, no tarball
  dray stage --version 1.2.3

  # Full package plus linux slices
  dray stage --version 1.2.3 --pack-output dist/cub.tgz \
    --slice linux-x64 --slice linux-arm64`,
	RunE: runStage,
}

func init() {
	stageCmd.Flags().StringVar(&stageVersion, "version", "", "Version to stamp into package.json (semver, required)")
	stageCmd.Flags().StringVar(&stageWorkflowURL, "workflow-url", "", "GitHub Actions run URL (or bare run ID) to pull artifacts from")
	stageCmd.Flags().StringVar(&stageStagingDir, "staging-dir", "", "Stage into this directory (must be empty; temp dir if omitted)")
	stageCmd.Flags().StringVar(&stagePackOutput, "pack-output", "", "Write the packed tarball to this path")
	stageCmd.Flags().StringSliceVar(&stageSlices, "slice", nil, "Platform family to pack as a slice package (repeatable)")
	stageCmd.Flags().StringVar(&stageVendorDir, "vendor-dir", "", "Reuse an existing vendor tree instead of installing a fresh one")
	stageCmd.Flags().StringSliceVar(&stageRGTargets, "rg-target", nil, "Restrict the ripgrep fetch to these triples (repeatable)")
	stageCmd.MarkFlagRequired("version")
	rootCmd.AddCommand(stageCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
	return stageRelease(context.Background(), stageOptions{
		version:     stageVersion,
		workflowURL: stageWorkflowURL,
		stagingDir:  stageStagingDir,
		packOutput:  stagePackOutput,
		slices:      stageSlices,
		vendorDir:   stageVendorDir,
		rgTargets:   stageRGTargets,
	})
}

// stageOptions carries the staging pipeline inputs shared by the stage and
// release commands.
type stageOptions struct {
	version     string
	workflowURL string
	stagingDir  string
	packOutput  string
	slices      []string
	vendorDir   string
	rgTargets   []string
}

func stageRelease(ctx context.Context, opts stageOptions) error {
	// Phase 1: Validate inputs
	if _, err := semver.StrictNewVersion(opts.version); err != nil {
		return printer.Error(
			fmt.Sprintf("invalid version %q", opts.version),
			"The version is stamped into package.json and must be strict semver.",
			[]string{"Use MAJOR.MINOR.PATCH, e.g. dray stage --version 1.2.3"},
		)
	}

	families := make([]target.Family, 0, len(opts.slices))
	for _, tag := range opts.slices {
		family, err := target.ParseFamily(tag)
		if err != nil {
			return printer.Error(
				fmt.Sprintf("unknown slice family %q", tag),
				"Slices are keyed by npm platform family.",
				[]string{"Known families: " + joinFamilies(target.Families())},
			)
		}
		families = append(families, family)
	}
	if len(families) > 0 && opts.packOutput == "" {
		return printer.Error(
			"--slice requires --pack-output",
			"Slice tarballs are named from the full package's output path.",
			[]string{"Add --pack-output dist/cub.tgz (slices land next to it)"},
		)
	}

	targets := target.All()
	rgTargets := targets
	if len(opts.rgTargets) > 0 {
		rgTargets = make([]target.Triple, 0, len(opts.rgTargets))
		for _, raw := range opts.rgTargets {
			tr, err := target.Parse(raw)
			if err != nil {
				return printer.Error(
					fmt.Sprintf("unknown target triple %q", raw),
					"Ripgrep can only be fetched for registered targets.",
					[]string{"Known triples: " + joinTriples(target.All())},
				)
			}
			rgTargets = append(rgTargets, tr)
		}
	}

	cfg, err := config.Load(config.FileName)
	if err != nil {
		return err
	}
	packageRoot := cfg.PackageRoot

	// Phase 2: Vendor tree
	vendorDir := opts.vendorDir
	if vendorDir == "" {
		vendorDir = filepath.Join(packageRoot, native.VendorDirName)
		if err := vendorNativeDeps(ctx, cfg, opts.workflowURL, packageRoot, vendorDir, targets, rgTargets); err != nil {
			return err
		}
	} else {
		printer.Info("Reusing vendor tree at %s\n", vendorDir)
	}

	// Phase 3: Staging directory
	stagingDir := opts.stagingDir
	if stagingDir == "" {
		stagingDir, err = os.MkdirTemp("", "dray-stage-")
		if err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		// Preserved on exit so the staged package can be inspected.
	}

	// Phase 4: Assemble the full package
	printer.Step("staging version %s into %s\n", opts.version, stagingDir)
	if err := stage.AssembleFull(opts.version, packageRoot, vendorDir, stagingDir); err != nil {
		var notEmpty *stage.NotEmptyError
		if errors.As(err, &notEmpty) {
			return printer.Error(
				fmt.Sprintf("staging directory %s is not empty", notEmpty.Dir),
				"Staging refuses to overwrite existing files.",
				[]string{
					"Point --staging-dir at an empty or new directory",
					"Remove the existing contents first",
				},
			)
		}
		return err
	}
	printer.Success("staged package at %s\n", stagingDir)

	// Phase 5: Pack the full package
	if opts.packOutput != "" {
		tarball, err := packStaged(ctx, stagingDir, opts.packOutput)
		if err != nil {
			return err
		}
		printer.Success("packed %s\n", tarball)
	}

	// Phase 6: Pack slices
	for _, family := range families {
		tarball, err := packSliceForFamily(ctx, opts.version, packageRoot, vendorDir, family, opts.packOutput)
		if err != nil {
			return err
		}
		printer.Success("packed %s slice: %s\n", family, tarball)
	}

	printer.Info("\nStaged package: %s\n", stagingDir)
	return nil
}

// packSliceForFamily assembles a per-family slice in a scratch staging dir
// and packs it next to the full tarball. The scratch dir does not outlive
// the call.
func packSliceForFamily(ctx context.Context, version, packageRoot, vendorDir string, family target.Family, packOutput string) (string, error) {
	sliceDir, err := os.MkdirTemp("", "dray-slice-")
	if err != nil {
		return "", fmt.Errorf("failed to create slice staging directory: %w", err)
	}
	defer os.RemoveAll(sliceDir)

	if err := stage.AssembleSlice(version, packageRoot, vendorDir, family, sliceDir); err != nil {
		var incomplete *stage.IncompleteSliceError
		if errors.As(err, &incomplete) {
			return "", printer.ErrorWithContext(
				fmt.Sprintf("vendor tree cannot satisfy slice %s", family),
				"Every triple in the family must be vendored before slicing.",
				map[string]string{
					"Family":  string(family),
					"Missing": joinTriples(incomplete.Missing),
				},
				[]string{"Run 'dray vendor' against a complete workflow run first"},
			)
		}
		return "", err
	}

	return packStaged(ctx, sliceDir, sliceOutputPath(packOutput, family))
}

// packStaged invokes npm pack and maps tool failures onto remediation
// errors.
func packStaged(ctx context.Context, stagingDir, outputPath string) (string, error) {
	tarball, err := npm.Pack(ctx, stagingDir, outputPath)
	if err != nil {
		if errors.Is(err, npm.ErrMissing) {
			return "", printer.Error(
				"npm not found in PATH",
				"Packing the staged directory requires the npm CLI.",
				[]string{"Install Node.js (which provides npm) from https://nodejs.org"},
			)
		}
		var toolErr *npm.PackToolError
		if errors.As(err, &toolErr) {
			return "", printer.Error(
				fmt.Sprintf("npm pack failed with exit code %d", toolErr.ExitCode),
				toolErr.Stderr,
				[]string{"Inspect the staged directory: " + stagingDir},
			)
		}
		return "", err
	}
	return tarball, nil
}

// sliceOutputPath derives a slice tarball path from the full package's
// output path by inserting the family tag before the extension.
func sliceOutputPath(packOutput string, family target.Family) string {
	ext := filepath.Ext(packOutput)
	return strings.TrimSuffix(packOutput, ext) + "-" + string(family) + ext
}
