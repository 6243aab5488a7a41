package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/dyluth/dray/internal/config"
	"github.com/dyluth/dray/internal/gh"
	"github.com/dyluth/dray/internal/git"
	"github.com/dyluth/dray/internal/printer"
	"github.com/spf13/cobra"
)

var (
	releaseVersion     string
	releaseTmp         string
	releasePackOutput  string
	releaseWorkflowURL string
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Stage and pack the npm release for a version",
	Long: `Stage and pack the npm release for a version.

The release version selects the workflow run: dray looks for the newest
run of the configured workflow on the release branch
(branch_prefix + version, release-v1.2.3 by default) and pulls its
artifacts. Pass --workflow-url to pin a specific run instead.

The staged package and tarball are left for manual verification; dray
never publishes on its own.

Example:
  dray release --release-version 1.2.3 --pack-output dist/cub.tgz`,
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().StringVar(&releaseVersion, "release-version", "", "Version being released (semver, required)")
	releaseCmd.Flags().StringVar(&releaseTmp, "tmp", "", "Stage into this directory (must be empty; temp dir if omitted)")
	releaseCmd.Flags().StringVar(&releasePackOutput, "pack-output", "", "Write the packed tarball to this path")
	releaseCmd.Flags().StringVar(&releaseWorkflowURL, "workflow-url", "", "GitHub Actions run URL (or bare run ID) to pull artifacts from")
	releaseCmd.MarkFlagRequired("release-version")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Phase 1: Validate the release version
	if _, err := semver.StrictNewVersion(releaseVersion); err != nil {
		return printer.Error(
			fmt.Sprintf("invalid release version %q", releaseVersion),
			"The release version names the release branch and is stamped into package.json.",
			[]string{"Use MAJOR.MINOR.PATCH, e.g. dray release --release-version 1.2.3"},
		)
	}

	cfg, err := config.Load(config.FileName)
	if err != nil {
		return err
	}

	// Phase 2: Resolve the workflow run for the release branch
	workflowURL := releaseWorkflowURL
	if workflowURL == "" {
		branch := cfg.ReleaseBranch(releaseVersion)
		printer.Step("resolving %s run on branch %s\n", cfg.Workflow, branch)

		run, err := gh.NewClient(cfg.Repo).ResolveRun(ctx, cfg.Workflow, branch)
		if err != nil {
			if errors.Is(err, gh.ErrMissing) {
				return printer.Error(
					"gh not found in PATH",
					"Resolving the release workflow run requires the GitHub CLI.",
					[]string{"Install it from https://cli.github.com and authenticate with: gh auth login"},
				)
			}
			var notFound *gh.RunNotFoundError
			if errors.As(err, &notFound) {
				return printer.ErrorWithContext(
					"no workflow run found for this release",
					"The release branch has no completed run of the configured workflow.",
					map[string]string{
						"Repo":     cfg.Repo,
						"Branch":   notFound.Branch,
						"Workflow": notFound.Workflow,
					},
					[]string{
						fmt.Sprintf("Push the release branch and wait for %s to run", cfg.Workflow),
						"Pass --workflow-url to pin a specific run",
					},
				)
			}
			return err
		}

		workflowURL = run.URL
		printer.Info("Resolved workflow run: %s\n", run.URL)
		verifyCheckout(run)
	}

	// Phase 3: Stage and pack
	if err := stageRelease(ctx, stageOptions{
		version:     releaseVersion,
		workflowURL: workflowURL,
		stagingDir:  releaseTmp,
		packOutput:  releasePackOutput,
	}); err != nil {
		return err
	}

	// Phase 4: Next steps
	printReleaseNextSteps(releasePackOutput)
	return nil
}

// verifyCheckout warns when the working tree does not match the commit the
// workflow run built. Staging copies bin/ and package.json from the working
// tree, so a stale checkout would pair old launcher sources with new binaries.
func verifyCheckout(run gh.Run) {
	checker := git.NewChecker()

	head, err := checker.HeadSHA()
	if err != nil {
		printer.Warning("could not read the local checkout: %v\n", err)
		printer.Warning("make sure your checkout matches: git checkout %s\n", run.HeadSHA)
		return
	}

	if head != run.HeadSHA {
		printer.Warning("checkout is at %.12s but the workflow run built %.12s\n", head, run.HeadSHA)
		printer.Warning("staging copies bin/ and package.json from the working tree: git checkout %s\n", run.HeadSHA)
	} else {
		printer.Success("checkout matches the workflow run head (%.12s)\n", head)
	}

	clean, err := checker.IsWorkspaceClean()
	if err == nil && !clean {
		printer.Warning("working tree has uncommitted changes; the staged package may not match %.12s\n", run.HeadSHA)
	}
}

func printReleaseNextSteps(packOutput string) {
	printer.Info("\nNext steps:\n")
	if packOutput == "" {
		printer.Detail("1. Inspect the staged package printed above\n")
		printer.Detail("2. Re-run with --pack-output to produce the tarball\n")
		return
	}
	printer.Detail("1. Verify the tarball contents: tar -tzf %s\n", packOutput)
	printer.Detail("2. Smoke-test the launcher: npx %s --help\n", packOutput)
	printer.Detail("3. Publish: npm publish %s\n", packOutput)
}
