package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

func TestRemoteDirFor_UsesTargetWorkDirWhenSet(t *testing.T) {
	target := models.ClusterTarget{RemoteWorkDir: "/scratch/clustergo/"}
	bundle := models.BundleRef{ID: "abc123"}
	assert.Equal(t, "/scratch/clustergo/abc123", remoteDirFor(target, bundle))
}

func TestRemoteDirFor_FallsBackToDefaultWhenUnset(t *testing.T) {
	target := models.ClusterTarget{}
	bundle := models.BundleRef{ID: "abc123"}
	assert.Equal(t, "/tmp/clustergo/abc123", remoteDirFor(target, bundle))
}

func TestLaunchCommand_BackgroundsAndReportsPID(t *testing.T) {
	cmd := launchCommand("/scratch/clustergo/abc123")
	assert.Contains(t, cmd, "cd '/scratch/clustergo/abc123'/bootstrap")
	assert.Contains(t, cmd, "nohup go run .")
	assert.Contains(t, cmd, "echo $!")
}

func TestShellQuote_EscapesEmbeddedSingleQuotes(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestResultLocationsFor_NamesExactSentinelFiles(t *testing.T) {
	rec := backend.TrackedSubmission{
		BackendID:    "4242",
		RemoteDir:    "/tmp/clustergo/abc123",
		FunctionName: "summarize",
	}
	locs := resultLocationsFor(rec)
	assert.Equal(t, "/tmp/clustergo/abc123/result_summarize_4242.json", locs.SuccessPath)
	assert.Equal(t, "/tmp/clustergo/abc123/error_summarize_4242.json", locs.FailurePath)
}
