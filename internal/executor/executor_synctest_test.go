//go:build go1.25

package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

// TestExecutor_SubmitWaitCompletes_WithSynctest drives a job through
// several probe ticks to a terminal state using virtualized time: with
// synctest, the second-scale PollInterval below resolves instantly instead
// of taking several real seconds.
func TestExecutor_SubmitWaitCompletes_WithSynctest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var probeCount int32
		adapter := &fakeAdapter{
			probeFunc: func(ctx context.Context, backendID string) (models.JobState, error) {
				n := atomic.AddInt32(&probeCount, 1)
				if n < 3 {
					return models.StateRunning, nil
				}
				return models.StateCompleted, nil
			},
		}
		harvester := &fakeHarvester{
			artifact: models.ResultArtifact{
				Success: &models.SuccessResult{Value: []byte(`{"total":5}`), FormatTag: "json-v1"},
			},
		}

		ex := New(DefaultConfig(), map[models.BackendTag]backend.Adapter{models.BackendSSH: adapter}, harvester)
		defer ex.Stop()

		spec := localTestSpec(models.KindSSH)
		spec.PollInterval = 1 * time.Second

		jobID, err := ex.Submit(context.Background(), spec)
		require.NoError(t, err)

		artifact, err := ex.Wait(context.Background(), jobID, 0)
		require.NoError(t, err)
		assert.True(t, artifact.Ok())
		assert.GreaterOrEqual(t, int(atomic.LoadInt32(&probeCount)), 3)
		assert.Equal(t, 1, harvester.calls)
	})
}

// TestExecutor_UnknownPastGraceForcesLost_WithSynctest verifies the
// unknown_grace escalation fires deterministically without a real wall
// clock wait.
func TestExecutor_UnknownPastGraceForcesLost_WithSynctest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		adapter := &fakeAdapter{
			probeFunc: func(ctx context.Context, backendID string) (models.JobState, error) {
				return models.StateUnknown, nil
			},
		}
		harvester := &fakeHarvester{
			artifact: models.ResultArtifact{
				Failure: &models.FailureResult{ErrorKind: models.ErrorKindLost, Message: "lost"},
			},
		}

		ex := New(DefaultConfig(), map[models.BackendTag]backend.Adapter{models.BackendSSH: adapter}, harvester)
		defer ex.Stop()

		spec := localTestSpec(models.KindSSH)
		spec.PollInterval = 200 * time.Millisecond
		spec.UnknownGrace = 1 * time.Second

		jobID, err := ex.Submit(context.Background(), spec)
		require.NoError(t, err)

		artifact, err := ex.Wait(context.Background(), jobID, 0)
		require.NoError(t, err)
		assert.False(t, artifact.Ok())
		require.NotNil(t, artifact.Failure)
		assert.Equal(t, models.ErrorKindLost, artifact.Failure.ErrorKind)
	})
}
