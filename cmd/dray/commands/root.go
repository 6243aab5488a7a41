package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dray",
	Short: "Dray - npm release packaging for the cub CLI",
	Long: `Dray hauls prebuilt cub binaries into publishable npm packages.

It pulls native build artifacts out of GitHub Actions workflow runs, lays
them out in the vendor tree the npm package ships, bundles the ripgrep
helper every platform needs, and assembles full or per-platform packages
ready for npm publish.`,
	Version: version,
	// Prevent silent success when flags are passed without a subcommand
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
