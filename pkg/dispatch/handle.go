package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/pkg/models"
)

// JobHandle is the asynchronous-mode return value of Submit (spec §4.9):
// status, result(timeout), cancel, runtime, is_complete, safe to hand to
// another goroutine. A local handle tracks an in-process goroutine; a
// remote handle is a thin wrapper over the executor's job id.
//
// Safety for concurrent use relies on done's close happening-before any
// receive of it completes (the same guarantee sync.Once and context.Done
// rely on): value and err are only ever read after such a receive.
type JobHandle[Out any] struct {
	local     bool
	startedAt time.Time

	// local fields
	done  chan struct{}
	value Out
	err   error

	// remote fields
	exec  *executor.Executor
	jobID string
}

func newLocalHandle[In, Out any](ctx context.Context, fn func(context.Context, In) (Out, error), in In) *JobHandle[Out] {
	h := &JobHandle[Out]{local: true, startedAt: time.Now(), done: make(chan struct{})}
	go func() {
		h.value, h.err = fn(ctx, in)
		close(h.done)
	}()
	return h
}

func newRemoteHandle[Out any](exec *executor.Executor, jobID string) *JobHandle[Out] {
	return &JobHandle[Out]{exec: exec, jobID: jobID, startedAt: time.Now()}
}

// IsComplete reports whether the underlying call has reached a terminal
// state without blocking.
func (h *JobHandle[Out]) IsComplete() bool {
	if h.local {
		select {
		case <-h.done:
			return true
		default:
			return false
		}
	}
	state, err := h.exec.Status(h.jobID)
	return err == nil && state.Terminal()
}

// Status reports the handle's current job state without blocking. Local
// handles report StateRunning/StateCompleted/StateFailed only, since an
// in-process call has no cancelled/timeout/unknown states of its own.
func (h *JobHandle[Out]) Status() (models.JobState, error) {
	if h.local {
		if !h.IsComplete() {
			return models.StateRunning, nil
		}
		if h.err != nil {
			return models.StateFailed, nil
		}
		return models.StateCompleted, nil
	}
	return h.exec.Status(h.jobID)
}

// Result blocks until the call completes, ctx is cancelled, or timeout
// elapses (when positive), whichever comes first. A timeout never cancels
// the underlying call (spec §5); ErrResultTimeout is returned instead, and
// the caller may call Result again later.
func (h *JobHandle[Out]) Result(ctx context.Context, timeout time.Duration) (Out, error) {
	var zero Out
	if h.local {
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}
		select {
		case <-h.done:
			return h.value, h.err
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timeoutCh:
			return zero, ErrResultTimeout
		}
	}

	artifact, err := h.exec.Wait(ctx, h.jobID, timeout)
	if err != nil {
		if isWaitTimeout(err) {
			return zero, ErrResultTimeout
		}
		return zero, err
	}
	return decodeArtifact[Out](artifact)
}

// Cancel attempts backend-native cancellation of the underlying job. Local
// calls cannot be cancelled: there is no backend submission to reach.
func (h *JobHandle[Out]) Cancel(ctx context.Context) error {
	if h.local {
		return ErrCannotCancelLocal
	}
	return h.exec.Cancel(ctx, h.jobID)
}

// Runtime reports wall-clock time elapsed since Submit was called.
func (h *JobHandle[Out]) Runtime() time.Duration {
	return time.Since(h.startedAt)
}

func isWaitTimeout(err error) bool {
	return errors.Is(err, executor.ErrWaitTimeout)
}
