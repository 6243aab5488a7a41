package gh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrMissing indicates the gh CLI is not installed.
var ErrMissing = errors.New("gh not found in PATH")

// Run describes one workflow run as reported by `gh run list`.
type Run struct {
	WorkflowName string `json:"workflowName"`
	URL          string `json:"url"`
	HeadSHA      string `json:"headSha"`
}

// ID returns the run identifier, the trailing path segment of the run URL.
func (r Run) ID() string {
	return RunIDFromURL(r.URL)
}

// RunNotFoundError reports that no run of the wanted workflow exists on the
// release branch.
type RunNotFoundError struct {
	Workflow string
	Branch   string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("no %s workflow run found for branch %s", e.Workflow, e.Branch)
}

// Client queries and downloads GitHub Actions artifacts for one repository
// through the gh CLI.
type Client struct {
	repo string
}

// NewClient creates a client for an owner/name repository slug.
func NewClient(repo string) *Client {
	return &Client{repo: repo}
}

// ResolveRun finds the most recent run of the named workflow on branch.
func (c *Client) ResolveRun(ctx context.Context, workflow, branch string) (Run, error) {
	output, err := c.output(ctx,
		"run", "list",
		"--repo", c.repo,
		"--branch", branch,
		"--json", "workflowName,url,headSha",
	)
	if err != nil {
		return Run{}, err
	}

	var runs []Run
	if err := json.Unmarshal(output, &runs); err != nil {
		return Run{}, fmt.Errorf("failed to parse gh run list output: %w", err)
	}

	// gh lists newest first; take the first run of the wanted workflow.
	for _, run := range runs {
		if run.WorkflowName == workflow {
			return run, nil
		}
	}
	return Run{}, &RunNotFoundError{Workflow: workflow, Branch: branch}
}

// DownloadRun downloads every artifact of a run into destDir, one
// subdirectory per artifact. Progress output passes through to the caller's
// terminal.
func (c *Client) DownloadRun(ctx context.Context, runID, destDir string) error {
	cmd := exec.CommandContext(ctx, "gh",
		"run", "download",
		"--dir", destDir,
		"--repo", c.repo,
		runID,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return ErrMissing
		}
		return fmt.Errorf("failed to download artifacts for run %s: %w", runID, err)
	}
	return nil
}

func (c *Client) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, ErrMissing
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("gh %s failed: %s", strings.Join(args[:2], " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("failed to run gh: %w", err)
	}
	return output, nil
}

// RunIDFromURL extracts the bundle identifier from a run locator: the
// trailing path segment of a workflow-run URL, or the locator itself when it
// carries no path.
func RunIDFromURL(locator string) string {
	trimmed := strings.TrimRight(locator, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
