package commands

import (
	"fmt"

	"github.com/dyluth/dray/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init [package-root]",
	Short: "Initialize dray for an npm package",
	Long: `Initialize dray for an npm package.

Creates:
  • dray.yml - packaging configuration (repository, workflow, release branches)
  • .gitignore entry for vendor/ so staged binaries stay out of version control

package-root defaults to the current directory and should be the directory
holding package.json.

Use --force to reinitialize (WARNING: overwrites existing configuration).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (overwrites existing dray.yml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	packageRoot := "."
	if len(args) == 1 {
		packageRoot = args[0]
	}

	// Check for an existing configuration (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(packageRoot); err != nil {
			return err
		}
	}

	// Initialize the package
	if err := scaffold.Initialize(packageRoot, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Print success message
	scaffold.PrintSuccess(packageRoot)

	return nil
}
