package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestSubmissionTracker_PutGetDelete(t *testing.T) {
	tr := NewSubmissionTracker()
	target := models.ClusterTarget{Kind: models.KindSSH, Host: "node1"}

	tr.Put("pid-123", TrackedSubmission{Target: target, RemoteDir: "/tmp/clustergo/bundle-a"})

	rec, ok := tr.Get("pid-123")
	require.True(t, ok)
	assert.Equal(t, "pid-123", rec.BackendID)
	assert.Equal(t, target, rec.Target)

	byDir, ok := tr.GetByRemoteDir("/tmp/clustergo/bundle-a")
	require.True(t, ok)
	assert.Equal(t, "pid-123", byDir.BackendID)

	tr.Delete("pid-123")
	_, ok = tr.Get("pid-123")
	assert.False(t, ok)
	_, ok = tr.GetByRemoteDir("/tmp/clustergo/bundle-a")
	assert.False(t, ok, "deleting by backend id must also clear the remote-dir index")
}

func TestSubmissionTracker_UnknownIDReturnsFalse(t *testing.T) {
	tr := NewSubmissionTracker()
	_, ok := tr.Get("ghost")
	assert.False(t, ok)
}
