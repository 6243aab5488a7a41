package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/dyluth/dray/internal/dotslash"
	"github.com/dyluth/dray/internal/native"
	"github.com/dyluth/dray/internal/printer"
	"github.com/dyluth/dray/internal/ripgrep"
	"github.com/dyluth/dray/internal/target"
	"github.com/spf13/cobra"
)

var (
	rgBinDir      string
	rgTargetFlags []string
	rgCurrentOnly bool
)

var rgCmd = &cobra.Command{
	Use:   "rg",
	Short: "Fetch ripgrep binaries into the vendor tree",
	Long: `Fetch ripgrep binaries for one or more targets.

Reads the DotSlash manifest at <bin-dir>/rg and installs each target's
rg binary under the sibling vendor tree:
  <bin-dir>/../vendor/<triple>/path/rg

By default all registered targets are fetched. Use --target to pick
specific triples, or --current-only to fetch just the host platform's
binary (useful for local development).`,
	RunE: runRG,
}

func init() {
	rgCmd.Flags().StringVar(&rgBinDir, "bin-dir", "", "Directory containing the rg DotSlash manifest (required)")
	rgCmd.Flags().StringSliceVar(&rgTargetFlags, "target", nil, "Target triple to fetch (repeatable; default all)")
	rgCmd.Flags().BoolVar(&rgCurrentOnly, "current-only", false, "Fetch only the host platform's binary")
	rgCmd.MarkFlagRequired("bin-dir")
	rootCmd.AddCommand(rgCmd)
}

func runRG(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Phase 1: Validate flags
	if rgBinDir == "" {
		return printer.Error(
			"required flag --bin-dir not provided",
			"Usage:\n  dray rg --bin-dir ./bin",
			[]string{"For local development:\n  dray rg --bin-dir ./bin --current-only"},
		)
	}
	if rgCurrentOnly && len(rgTargetFlags) > 0 {
		return printer.Error(
			"--current-only and --target are mutually exclusive",
			"Pick either the host platform or an explicit target list.",
			[]string{"Drop one of the two flags"},
		)
	}

	// Phase 2: Resolve the target set
	var targets []target.Triple
	switch {
	case rgCurrentOnly:
		tr, ok := target.Detect()
		if !ok {
			return printer.Error(
				"unsupported host platform",
				fmt.Sprintf("No registered target matches %s/%s.", runtime.GOOS, runtime.GOARCH),
				[]string{"Pass --target with one of: " + joinTriples(target.All())},
			)
		}
		targets = []target.Triple{tr}
	case len(rgTargetFlags) > 0:
		for _, raw := range rgTargetFlags {
			tr, err := target.Parse(raw)
			if err != nil {
				return printer.Error(
					fmt.Sprintf("unknown target triple %q", raw),
					"Ripgrep can only be fetched for registered targets.",
					[]string{"Known triples: " + joinTriples(target.All())},
				)
			}
			targets = append(targets, tr)
		}
	default:
		targets = target.All()
	}

	// Phase 3: Fetch into the vendor tree next to bin-dir
	manifestPath := filepath.Join(rgBinDir, ripgrep.BinaryName)
	vendorDir := filepath.Join(filepath.Dir(rgBinDir), native.VendorDirName)

	paths, err := ripgrep.NewFetcher().Fetch(ctx, manifestPath, vendorDir, targets)
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
	return nil
}
