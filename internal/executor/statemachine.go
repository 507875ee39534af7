package executor

import (
	"time"

	"github.com/stlpine/clustergo/pkg/models"
)

// applyObservation folds one backend probe result into job, enforcing the
// state machine DAG (models.JobState.ValidTransition) plus the
// unknown_grace escalation rule (spec §4.6): a job stuck in StateUnknown
// longer than its JobSpec's UnknownGrace is forced to failed{Lost}
// regardless of what the adapter reports on a later tick.
func applyObservation(job models.Job, observed models.JobState, now time.Time) models.Job {
	if observed == models.StateUnknown {
		return applyUnknownObservation(job, now)
	}

	job.UnknownStreak = 0
	job.UnknownSince = nil

	if !job.State.ValidTransition(observed) {
		// Outside the DAG from the current state (e.g. a stale probe
		// reporting running after the job already completed). Ignore
		// rather than corrupt the record; the next probe tends to
		// self-correct once the backend's view settles.
		return job
	}

	if observed == models.StateRunning && job.FirstObservedActiveAt == nil {
		t := now
		job.FirstObservedActiveAt = &t
	}

	job.State = observed
	if observed.Terminal() {
		markTerminal(&job, now)
	}
	return job
}

func applyUnknownObservation(job models.Job, now time.Time) models.Job {
	if job.State != models.StateUnknown {
		job.UnknownStreak = 0
		t := now
		job.UnknownSince = &t
	}
	job.UnknownStreak++

	grace := job.Spec.UnknownGrace
	if grace > 0 && job.UnknownSince != nil && now.Sub(*job.UnknownSince) > grace {
		job.State = models.StateFailed
		job.UnknownSince = nil
		markTerminal(&job, now)
		return job
	}

	if job.State.ValidTransition(models.StateUnknown) {
		job.State = models.StateUnknown
	}
	return job
}

func markTerminal(job *models.Job, now time.Time) {
	if job.TerminalAt == nil {
		t := now
		job.TerminalAt = &t
	}
}
