package executor

import "errors"

var (
	// ErrJobNotFound is returned by any operation keyed by a job id the
	// registry no longer (or never did) hold — including after cleanup has
	// deregistered a terminal job.
	ErrJobNotFound = errors.New("executor: job not found")

	// ErrNoAdapter is returned by Submit when no backend.Adapter was wired
	// for the resolved models.BackendTag.
	ErrNoAdapter = errors.New("executor: no adapter registered for backend")

	// ErrWaitTimeout is returned by Wait when the caller-supplied timeout
	// elapses before the job reaches a terminal state. The job itself is
	// left running; spec §5 is explicit that a Wait timeout never cancels.
	ErrWaitTimeout = errors.New("executor: wait timed out before job reached a terminal state")
)
