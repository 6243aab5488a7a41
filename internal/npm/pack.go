package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrMissing indicates the npm CLI is not installed.
var ErrMissing = errors.New("npm not found in PATH")

// ErrNoOutput indicates npm pack reported no usable tarball.
var ErrNoOutput = errors.New("npm pack did not produce an output tarball")

// PackToolError reports a non-zero npm pack exit.
type PackToolError struct {
	ExitCode int
	Stderr   string
}

func (e *PackToolError) Error() string {
	return fmt.Sprintf("npm pack failed with exit code %d: %s", e.ExitCode, e.Stderr)
}

// OutputNotFoundError reports that the tarball npm claimed to produce does
// not exist.
type OutputNotFoundError struct {
	Path string
}

func (e *OutputNotFoundError) Error() string {
	return fmt.Sprintf("expected npm pack output not found: %s", e.Path)
}

// packResult is one element of npm pack's --json report.
type packResult struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
}

// Pack materializes a staged package directory into a tarball at
// outputPath. npm writes into a private scratch directory first; the
// produced filename is discovered from npm's JSON report, verified, then
// moved into place. The scratch directory is reclaimed on every path.
func Pack(ctx context.Context, stagingDir, outputPath string) (string, error) {
	outputPath, err := filepath.Abs(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	scratchDir, err := os.MkdirTemp("", "dray-npm-pack-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	cmd := exec.CommandContext(ctx, "npm", "pack", "--json", "--pack-destination", scratchDir)
	cmd.Dir = stagingDir
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", ErrMissing
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &PackToolError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(string(exitErr.Stderr)),
			}
		}
		return "", fmt.Errorf("failed to run npm pack: %w", err)
	}

	var results []packResult
	if err := json.Unmarshal(output, &results); err != nil {
		return "", fmt.Errorf("failed to parse npm pack output: %w", ErrNoOutput)
	}
	if len(results) == 0 {
		return "", ErrNoOutput
	}

	tarballName := results[0].Filename
	if tarballName == "" {
		tarballName = results[0].Name
	}
	if tarballName == "" {
		return "", fmt.Errorf("unable to determine tarball filename: %w", ErrNoOutput)
	}

	tarballPath := filepath.Join(scratchDir, tarballName)
	if _, err := os.Stat(tarballPath); err != nil {
		return "", &OutputNotFoundError{Path: tarballPath}
	}

	if err := moveFile(tarballPath, outputPath); err != nil {
		return "", fmt.Errorf("failed to move tarball to %s: %w", outputPath, err)
	}
	return outputPath, nil
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// two live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
