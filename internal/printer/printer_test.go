package printer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Download failed", "The workflow run produced no artifacts", []string{})
		require.Error(t, err)
		require.Equal(t, "Download failed", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Download failed", "Explanation", []string{"Re-run the workflow"})
		require.Error(t, err)
		require.Equal(t, "Download failed", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Download failed", "Explanation", []string{
			"Re-run the workflow",
			"Pass --workflow-url to pin a specific run",
		})
		require.Error(t, err)
		require.Equal(t, "Download failed", err.Error())
	})
}

func TestErrorWithContext(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		context := map[string]string{
			"Vendor dir": "/path/to/vendor",
			"Missing":    "aarch64-apple-darwin",
		}
		err := ErrorWithContext("Vendor tree incomplete", "Explanation", context, []string{})
		require.Error(t, err)
		require.Equal(t, "Vendor tree incomplete", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		context := map[string]string{"Key": "Value"}
		err := ErrorWithContext("Vendor tree incomplete", "Explanation", context, []string{"Run the vendor step first"})
		require.Error(t, err)
		require.Equal(t, "Vendor tree incomplete", err.Error())
	})
}

// Note: The Error and ErrorWithContext functions print formatted output to stderr
// with colors. The error object returned only contains the title for Cobra's error handling.
// This is intentional to avoid duplicate output while providing rich formatted errors.
