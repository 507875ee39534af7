package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

func newTestExecutor(adapter backend.Adapter, harvester Harvester) *Executor {
	cfg := DefaultConfig()
	cfg.WorkerPoolCapacity = 4
	return New(cfg, map[models.BackendTag]backend.Adapter{models.BackendSSH: adapter}, harvester)
}

func TestExecutor_Submit_NoAdapterForBackendReturnsError(t *testing.T) {
	ex := New(DefaultConfig(), map[models.BackendTag]backend.Adapter{}, &fakeHarvester{})
	defer ex.Stop()

	_, err := ex.Submit(context.Background(), localTestSpec(models.KindSSH))
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestExecutor_Submit_BackendRejectionMarksJobFailed(t *testing.T) {
	adapter := &fakeAdapter{
		submitFunc: func(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error) {
			return "", "", errors.New("queue full")
		},
	}
	ex := newTestExecutor(adapter, &fakeHarvester{})
	defer ex.Stop()

	jobID, err := ex.Submit(context.Background(), localTestSpec(models.KindSSH))
	require.Error(t, err)
	require.NotEmpty(t, jobID)

	state, err := ex.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, state)
}

func TestExecutor_Submit_SuccessTransitionsToRunningAndSchedulesPoll(t *testing.T) {
	adapter := &fakeAdapter{}
	ex := newTestExecutor(adapter, &fakeHarvester{})
	defer ex.Stop()

	jobID, err := ex.Submit(context.Background(), localTestSpec(models.KindSSH))
	require.NoError(t, err)

	state, err := ex.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, state)

	require.Eventually(t, func() bool {
		return adapter.ProbeCalls() > 0
	}, 2*time.Second, 5*time.Millisecond, "poller should have probed the job at least once")
}

func TestExecutor_Status_UnknownJobReturnsErrJobNotFound(t *testing.T) {
	ex := newTestExecutor(&fakeAdapter{}, &fakeHarvester{})
	defer ex.Stop()

	_, err := ex.Status("ghost")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestExecutor_Cancel_SetsCancelledOptimisticallyAndCallsAdapter(t *testing.T) {
	adapter := &fakeAdapter{}
	ex := newTestExecutor(adapter, &fakeHarvester{})
	defer ex.Stop()

	jobID, err := ex.Submit(context.Background(), localTestSpec(models.KindSSH))
	require.NoError(t, err)

	require.NoError(t, ex.Cancel(context.Background(), jobID))

	state, err := ex.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, state)
	assert.Equal(t, 1, adapter.CancelCalls())
}

func TestExecutor_Cancel_AdapterErrorDoesNotUndoOptimisticState(t *testing.T) {
	adapter := &fakeAdapter{
		cancelFunc: func(ctx context.Context, backendID string) error {
			return errors.New("backend unreachable")
		},
	}
	ex := newTestExecutor(adapter, &fakeHarvester{})
	defer ex.Stop()

	jobID, err := ex.Submit(context.Background(), localTestSpec(models.KindSSH))
	require.NoError(t, err)

	err = ex.Cancel(context.Background(), jobID)
	require.NoError(t, err, "Cancel itself only reports worker-pool dispatch failures, not adapter errors")

	state, _ := ex.Status(jobID)
	assert.Equal(t, models.StateCancelled, state)
}

func TestExecutor_Wait_CleanupRunsOnSuccessWhenEnabled(t *testing.T) {
	adapter := &fakeAdapter{
		probeFunc: func(ctx context.Context, backendID string) (models.JobState, error) {
			return models.StateCompleted, nil
		},
	}
	harvester := &fakeHarvester{
		artifact: models.ResultArtifact{Success: &models.SuccessResult{Value: []byte("1"), FormatTag: "json-v1"}},
	}
	ex := newTestExecutor(adapter, harvester)
	defer ex.Stop()

	spec := localTestSpec(models.KindSSH)
	spec.PollInterval = 10 * time.Millisecond

	jobID, err := ex.Submit(context.Background(), spec)
	require.NoError(t, err)

	artifact, err := ex.Wait(context.Background(), jobID, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, artifact.Ok())

	require.Eventually(t, func() bool {
		adapter.mu.Lock()
		defer adapter.mu.Unlock()
		return len(adapter.cleanupDirs) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExecutor_Wait_SkipsCleanupWhenDisabled(t *testing.T) {
	adapter := &fakeAdapter{
		probeFunc: func(ctx context.Context, backendID string) (models.JobState, error) {
			return models.StateCompleted, nil
		},
	}
	harvester := &fakeHarvester{
		artifact: models.ResultArtifact{Success: &models.SuccessResult{Value: []byte("1"), FormatTag: "json-v1"}},
	}
	cfg := DefaultConfig()
	cfg.CleanupOnSuccess = false
	ex := New(cfg, map[models.BackendTag]backend.Adapter{models.BackendSSH: adapter}, harvester)
	defer ex.Stop()

	spec := localTestSpec(models.KindSSH)
	spec.PollInterval = 10 * time.Millisecond

	jobID, err := ex.Submit(context.Background(), spec)
	require.NoError(t, err)

	_, err = ex.Wait(context.Background(), jobID, 2*time.Second)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	assert.Empty(t, adapter.cleanupDirs)
}

func TestExecutor_Wait_TimesOutWithoutTerminalState(t *testing.T) {
	adapter := &fakeAdapter{
		probeFunc: func(ctx context.Context, backendID string) (models.JobState, error) {
			return models.StateRunning, nil
		},
	}
	ex := newTestExecutor(adapter, &fakeHarvester{})
	defer ex.Stop()

	spec := localTestSpec(models.KindSSH)
	spec.PollInterval = 10 * time.Millisecond

	jobID, err := ex.Submit(context.Background(), spec)
	require.NoError(t, err)

	_, err = ex.Wait(context.Background(), jobID, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)

	state, err := ex.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, state, "a Wait timeout must not cancel the job")
}
