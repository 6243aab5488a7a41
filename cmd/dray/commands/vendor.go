package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/dray/internal/config"
	"github.com/dyluth/dray/internal/dotslash"
	"github.com/dyluth/dray/internal/gh"
	"github.com/dyluth/dray/internal/native"
	"github.com/dyluth/dray/internal/printer"
	"github.com/dyluth/dray/internal/ripgrep"
	"github.com/dyluth/dray/internal/target"
	"github.com/spf13/cobra"
)

// defaultWorkflowURL pins a known-good native-release run, used when no
// --workflow-url is given.
const defaultWorkflowURL = "https://github.com/dyluth/cub/actions/runs/17952349351"

var vendorWorkflowURL string

var vendorCmd = &cobra.Command{
	Use:   "vendor [package-root]",
	Short: "Install native cub binaries into the vendor tree",
	Long: `Install the native cub binaries and the ripgrep helper into the
vendor tree that ships inside the npm package.

The package root defaults to the current directory and must contain
bin/rg (the ripgrep DotSlash manifest). Artifacts are pulled from a
GitHub Actions workflow run; without --workflow-url a pinned known-good
run is used.

Layout after vendoring:
  vendor/<triple>/cub/cub       (cub.exe on Windows targets)
  vendor/<triple>/path/rg       (rg.exe on Windows targets)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVendor,
}

func init() {
	vendorCmd.Flags().StringVar(&vendorWorkflowURL, "workflow-url", "", "GitHub Actions run URL (or bare run ID) to pull artifacts from")
	rootCmd.AddCommand(vendorCmd)
}

func runVendor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	packageRoot := "."
	if len(args) == 1 {
		packageRoot = args[0]
	}

	cfg, err := config.Load(filepath.Join(packageRoot, config.FileName))
	if err != nil {
		return err
	}

	vendorDir := filepath.Join(packageRoot, native.VendorDirName)
	targets := target.All()

	if err := vendorNativeDeps(ctx, cfg, vendorWorkflowURL, packageRoot, vendorDir, targets, targets); err != nil {
		return err
	}

	printer.Success("vendor tree ready: %s\n", vendorDir)
	return nil
}

// vendorNativeDeps downloads a workflow run's artifact bundle, installs
// every requested target plus ripgrep into vendorDir, and validates the
// resulting tree. Shared by the vendor, stage, and release commands.
func vendorNativeDeps(ctx context.Context, cfg *config.Config, workflowURL, packageRoot, vendorDir string, targets, rgTargets []target.Triple) error {
	if workflowURL == "" {
		workflowURL = defaultWorkflowURL
		printer.Info("No --workflow-url given, using pinned run %s\n", workflowURL)
	}
	runID := gh.RunIDFromURL(workflowURL)

	// Phase 1: Reset the vendor layout
	printer.Step("resetting vendor layout at %s\n", vendorDir)
	if err := native.ResetLayout(vendorDir, targets); err != nil {
		return err
	}

	// Phase 2: Download the artifact bundle
	bundleDir, err := os.MkdirTemp("", "dray-bundle-")
	if err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}
	defer os.RemoveAll(bundleDir)

	printer.Step("downloading artifacts from run %s\n", runID)
	if err := gh.NewClient(cfg.Repo).DownloadRun(ctx, runID, bundleDir); err != nil {
		if errors.Is(err, gh.ErrMissing) {
			return printer.Error(
				"gh not found in PATH",
				"Downloading workflow artifacts requires the GitHub CLI.",
				[]string{"Install it from https://cli.github.com and authenticate with: gh auth login"},
			)
		}
		return fmt.Errorf("failed to download artifacts for run %s: %w", runID, err)
	}

	// Phase 3: Install targets concurrently
	installed, err := native.Install(bundleDir, vendorDir, targets)
	if err != nil {
		var missing *native.ArtifactMissingError
		if errors.As(err, &missing) {
			return printer.ErrorWithContext(
				"artifact bundle is incomplete",
				"The workflow run did not produce a build for every target.",
				map[string]string{
					"Run":    runID,
					"Target": string(missing.Target),
				},
				[]string{
					"Wait for every matrix job in the run to finish",
					"Pass --workflow-url pointing at a complete run",
				},
			)
		}
		return err
	}
	for _, tr := range targets {
		printer.Success("installed %s\n", installed[tr])
	}

	// Phase 4: Fetch ripgrep
	manifestPath := filepath.Join(packageRoot, "bin", ripgrep.BinaryName)
	printer.Step("fetching ripgrep for %d target(s)\n", len(rgTargets))
	paths, err := ripgrep.NewFetcher().Fetch(ctx, manifestPath, vendorDir, rgTargets)
	if err != nil {
		if errors.Is(err, dotslash.ErrMissing) {
			return printer.Error(
				"dotslash not found in PATH",
				"Reading the ripgrep manifest requires the dotslash CLI.",
				[]string{"Install it with: cargo install dotslash"},
			)
		}
		return err
	}
	for _, p := range paths {
		printer.Success("installed %s\n", p)
	}

	// Phase 5: Validate the tree
	if err := native.Validate(vendorDir, targets); err != nil {
		var invalid *native.ValidationError
		if errors.As(err, &invalid) {
			return printer.ErrorWithContext(
				"vendor tree failed validation",
				"Some targets are missing or not executable after install.",
				map[string]string{
					"Vendor dir": vendorDir,
					"Missing":    joinTriples(invalid.Missing),
				},
				[]string{"Re-run against a workflow run that built every target"},
			)
		}
		return err
	}

	return nil
}

func joinTriples(triples []target.Triple) string {
	parts := make([]string, len(triples))
	for i, tr := range triples {
		parts[i] = string(tr)
	}
	return strings.Join(parts, ", ")
}

func joinFamilies(families []target.Family) string {
	parts := make([]string, len(families))
	for i, f := range families {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
