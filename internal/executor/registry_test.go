package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	job := models.Job{ID: "job-1", State: models.StatePending}
	r.register(job, &fakeAdapter{})

	got, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.StatePending, got.State)

	_, ok = r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_CommitAppliesAndReturnsUpdatedJob(t *testing.T) {
	r := NewRegistry()
	r.register(models.Job{ID: "job-1", State: models.StatePending}, &fakeAdapter{})

	updated, ok := r.commit("job-1", func(j models.Job) models.Job {
		j.State = models.StateRunning
		return j
	})
	require.True(t, ok)
	assert.Equal(t, models.StateRunning, updated.State)

	got, _ := r.Get("job-1")
	assert.Equal(t, models.StateRunning, got.State)
}

func TestRegistry_DeregisterRemovesJob(t *testing.T) {
	r := NewRegistry()
	r.register(models.Job{ID: "job-1"}, &fakeAdapter{})
	r.deregister("job-1")

	_, ok := r.Get("job-1")
	assert.False(t, ok)
}

func TestRegistry_WaitTerminal_ReturnsOnceCommitMarksTerminal(t *testing.T) {
	r := NewRegistry()
	r.register(models.Job{ID: "job-1", State: models.StateRunning}, &fakeAdapter{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.commit("job-1", func(j models.Job) models.Job {
			j.State = models.StateCompleted
			return j
		})
	}()

	job, err := r.waitTerminal(context.Background(), "job-1", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, job.State)
}

func TestRegistry_WaitTerminal_TimesOutWithoutCancellingJob(t *testing.T) {
	r := NewRegistry()
	r.register(models.Job{ID: "job-1", State: models.StateRunning}, &fakeAdapter{})

	job, err := r.waitTerminal(context.Background(), "job-1", 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, models.StateRunning, job.State)

	stillThere, ok := r.Get("job-1")
	assert.True(t, ok)
	assert.Equal(t, models.StateRunning, stillThere.State)
}

func TestRegistry_WaitTerminal_RespectsContextCancellation(t *testing.T) {
	r := NewRegistry()
	r.register(models.Job{ID: "job-1", State: models.StateRunning}, &fakeAdapter{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.waitTerminal(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_WaitTerminal_UnknownJobReturnsErrJobNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.waitTerminal(context.Background(), "ghost", time.Second)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
