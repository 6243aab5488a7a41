package gh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/dray/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDFromURL(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{name: "run URL", locator: "https://github.com/dyluth/cub/actions/runs/17952349351", want: "17952349351"},
		{name: "trailing slash", locator: "https://github.com/dyluth/cub/actions/runs/42/", want: "42"},
		{name: "bare ID", locator: "17952349351", want: "17952349351"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunIDFromURL(tt.locator))
		})
	}
}

func TestResolveRun(t *testing.T) {
	fakeBin := t.TempDir()
	testutil.FakeExecutable(t, fakeBin, "gh", `cat <<'EOF'
[
  {"workflowName": "ci", "url": "https://github.com/dyluth/cub/actions/runs/100", "headSha": "aaa111"},
  {"workflowName": "native-release", "url": "https://github.com/dyluth/cub/actions/runs/101", "headSha": "bbb222"},
  {"workflowName": "native-release", "url": "https://github.com/dyluth/cub/actions/runs/99", "headSha": "ccc333"}
]
EOF`)
	testutil.PrependPath(t, fakeBin)

	run, err := NewClient("dyluth/cub").ResolveRun(context.Background(), "native-release", "release-v1.2.3")
	require.NoError(t, err)

	// Newest matching run wins.
	assert.Equal(t, "https://github.com/dyluth/cub/actions/runs/101", run.URL)
	assert.Equal(t, "bbb222", run.HeadSHA)
	assert.Equal(t, "101", run.ID())
}

func TestResolveRunNoMatch(t *testing.T) {
	fakeBin := t.TempDir()
	testutil.FakeExecutable(t, fakeBin, "gh", `echo '[{"workflowName": "ci", "url": "u", "headSha": "s"}]'`)
	testutil.PrependPath(t, fakeBin)

	_, err := NewClient("dyluth/cub").ResolveRun(context.Background(), "native-release", "release-v1.2.3")

	var notFound *RunNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "native-release", notFound.Workflow)
	assert.Equal(t, "release-v1.2.3", notFound.Branch)
}

func TestResolveRunReportsStderr(t *testing.T) {
	fakeBin := t.TempDir()
	testutil.FakeExecutable(t, fakeBin, "gh", `echo "HTTP 404: Not Found" >&2
exit 1`)
	testutil.PrependPath(t, fakeBin)

	_, err := NewClient("dyluth/cub").ResolveRun(context.Background(), "native-release", "release-v1.2.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestMissingGH(t *testing.T) {
	// PATH with only an empty directory: gh cannot be found.
	t.Setenv("PATH", t.TempDir())

	_, err := NewClient("dyluth/cub").ResolveRun(context.Background(), "native-release", "release-v1.2.3")
	assert.True(t, errors.Is(err, ErrMissing))

	err = NewClient("dyluth/cub").DownloadRun(context.Background(), "101", t.TempDir())
	assert.True(t, errors.Is(err, ErrMissing))
}

func TestDownloadRunArguments(t *testing.T) {
	fakeBin := t.TempDir()
	argsFile := filepath.Join(fakeBin, "args.txt")
	testutil.FakeExecutable(t, fakeBin, "gh", `echo "$@" > `+argsFile)
	testutil.PrependPath(t, fakeBin)

	destDir := t.TempDir()
	require.NoError(t, NewClient("dyluth/cub").DownloadRun(context.Background(), "17952349351", destDir))

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.TrimSpace(string(recorded))
	assert.Contains(t, args, "run download")
	assert.Contains(t, args, "--dir "+destDir)
	assert.Contains(t, args, "--repo dyluth/cub")
	assert.True(t, strings.HasSuffix(args, "17952349351"))
}
