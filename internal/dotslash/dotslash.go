package dotslash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrMissing indicates the dotslash CLI is not installed.
var ErrMissing = errors.New("dotslash not found in PATH")

// Provider is one download location for a platform's archive.
type Provider struct {
	URL string `json:"url"`
}

// Platform describes the archive carrying a tool for one platform key.
type Platform struct {
	Size      int64      `json:"size"`
	Hash      string     `json:"hash"`
	Digest    string     `json:"digest"`
	Format    string     `json:"format"`
	Path      string     `json:"path"`
	Providers []Provider `json:"providers"`
}

// Manifest is the deserialized form of a DotSlash file.
type Manifest struct {
	Name      string              `json:"name"`
	Platforms map[string]Platform `json:"platforms"`
}

// Parse deserializes a DotSlash manifest by delegating to the dotslash CLI,
// which owns the file format (shebang line, comments and all).
func Parse(ctx context.Context, manifestPath string) (Manifest, error) {
	cmd := exec.CommandContext(ctx, "dotslash", "--", "parse", manifestPath)
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return Manifest{}, ErrMissing
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			details := strings.TrimSpace(string(exitErr.Stderr))
			if details == "" {
				details = "unknown error"
			}
			return Manifest{}, fmt.Errorf("failed to parse DotSlash manifest %s: %s", manifestPath, details)
		}
		return Manifest{}, fmt.Errorf("failed to run dotslash: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(output, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("invalid DotSlash manifest output from %s: %w", manifestPath, err)
	}
	return manifest, nil
}
