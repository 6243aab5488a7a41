package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Checker inspects the Git checkout that staging copies package sources from
type Checker struct{}

// NewChecker creates a new Git checker
func NewChecker() *Checker {
	return &Checker{}
}

// HeadSHA returns the commit the working tree is checked out at
func (c *Checker) HeadSHA() (string, error) {
	output, err := run("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// IsWorkspaceClean returns true if the Git working directory has no uncommitted changes.
// This includes staged, unstaged, and untracked files.
func (c *Checker) IsWorkspaceClean() (bool, error) {
	output, err := run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(output)) == 0, nil
}

func run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	output, err := cmd.Output()
	if err != nil {
		// Check if error is because git command not found
		if _, ok := err.(*exec.Error); ok {
			return "", fmt.Errorf("git not found in PATH")
		}
		return "", fmt.Errorf("failed to run git %s: %w", strings.Join(args, " "), err)
	}
	return string(output), nil
}
