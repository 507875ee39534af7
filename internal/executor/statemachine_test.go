package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestApplyObservation_PendingToRunningSetsFirstObservedActiveAt(t *testing.T) {
	now := time.Now()
	job := models.Job{State: models.StatePending}

	updated := applyObservation(job, models.StateRunning, now)

	assert.Equal(t, models.StateRunning, updated.State)
	require.NotNil(t, updated.FirstObservedActiveAt)
	assert.True(t, updated.FirstObservedActiveAt.Equal(now))
}

func TestApplyObservation_RunningToCompletedSetsTerminalAt(t *testing.T) {
	now := time.Now()
	job := models.Job{State: models.StateRunning}

	updated := applyObservation(job, models.StateCompleted, now)

	assert.Equal(t, models.StateCompleted, updated.State)
	require.NotNil(t, updated.TerminalAt)
	assert.True(t, updated.State.Terminal())
}

func TestApplyObservation_InvalidTransitionIsIgnored(t *testing.T) {
	job := models.Job{State: models.StateCompleted}

	updated := applyObservation(job, models.StateRunning, time.Now())

	assert.Equal(t, models.StateCompleted, updated.State, "a terminal job must not regress on a stale observation")
}

func TestApplyObservation_UnknownIncrementsStreakAndSetsUnknownSince(t *testing.T) {
	now := time.Now()
	job := models.Job{State: models.StateRunning}

	job = applyObservation(job, models.StateUnknown, now)
	assert.Equal(t, models.StateUnknown, job.State)
	assert.Equal(t, 1, job.UnknownStreak)
	require.NotNil(t, job.UnknownSince)

	job = applyObservation(job, models.StateUnknown, now.Add(time.Second))
	assert.Equal(t, 2, job.UnknownStreak)
}

func TestApplyObservation_NonUnknownObservationClearsStreak(t *testing.T) {
	now := time.Now()
	job := models.Job{State: models.StateRunning}
	job = applyObservation(job, models.StateUnknown, now)
	require.Equal(t, 1, job.UnknownStreak)

	job = applyObservation(job, models.StateRunning, now.Add(time.Second))
	assert.Equal(t, 0, job.UnknownStreak)
	assert.Nil(t, job.UnknownSince)
}

func TestApplyObservation_UnknownPastGraceForcesLost(t *testing.T) {
	start := time.Now()
	job := models.Job{
		State: models.StateRunning,
		Spec:  models.JobSpec{UnknownGrace: 5 * time.Second},
	}

	job = applyObservation(job, models.StateUnknown, start)
	assert.Equal(t, models.StateUnknown, job.State)

	job = applyObservation(job, models.StateUnknown, start.Add(6*time.Second))
	assert.Equal(t, models.StateFailed, job.State)
	assert.True(t, job.State.Terminal())
	require.NotNil(t, job.TerminalAt)
	assert.Nil(t, job.UnknownSince)
}

func TestApplyObservation_UnknownWithinGraceStaysUnknown(t *testing.T) {
	start := time.Now()
	job := models.Job{
		State: models.StateRunning,
		Spec:  models.JobSpec{UnknownGrace: 10 * time.Second},
	}

	job = applyObservation(job, models.StateUnknown, start)
	job = applyObservation(job, models.StateUnknown, start.Add(5*time.Second))

	assert.Equal(t, models.StateUnknown, job.State)
	assert.False(t, job.State.Terminal())
}
