package models

import "time"

// JobState is a node in the job lifecycle state machine (spec §4.6):
//
//	         submit                                           success
//	pending ───────► running ──────────────────────────► completed
//	   │                │
//	   │                ├──► failed (non-zero exit / exception)
//	   │                ├──► timeout (exceeded wall clock)
//	   │                └──► cancelled (user or shutdown)
//	   └─ submit-error ─► failed
//
// unknown may appear transiently during polling and must be resolved
// (to one of the above, or forced to failed{Lost} past unknown_grace)
// before the job is considered terminal.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
	StateTimeout   JobState = "timeout"
	StateUnknown   JobState = "unknown"
)

// Terminal reports whether s is one of the DAG's terminal states.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether moving from s to next is permitted by the
// state machine DAG in spec §4.6 / §8 invariant 2.
func (s JobState) ValidTransition(next JobState) bool {
	if s == next {
		return true // idempotent re-observation
	}
	switch s {
	case StatePending:
		switch next {
		case StateRunning, StateFailed, StateUnknown:
			return true
		}
	case StateRunning:
		switch next {
		case StateCompleted, StateFailed, StateTimeout, StateCancelled, StateUnknown:
			return true
		}
	case StateUnknown:
		switch next {
		case StateRunning, StateCompleted, StateFailed, StateTimeout, StateCancelled, StateUnknown:
			return true
		}
	}
	return false
}

// BackendTag identifies which adapter family owns a Job.
type BackendTag string

const (
	BackendBatch         BackendTag = "batch"
	BackendKubernetes    BackendTag = "kubernetes"
	BackendSSH           BackendTag = "ssh"
	BackendProvisionedVM BackendTag = "provisioned-vm"
	BackendLocal         BackendTag = "local"
)

// Job is the central runtime record tracked by the Executor Core's
// registry.
type Job struct {
	ID    string   `json:"id"`
	State JobState `json:"state"`
	Spec  JobSpec  `json:"-"`

	// RemoteDir is the path containing the staged bundle and (eventually)
	// its output artifacts.
	RemoteDir string `json:"remote_dir"`

	SubmittedAt           time.Time  `json:"submitted_at"`
	FirstObservedActiveAt *time.Time `json:"first_observed_active_at,omitempty"`
	TerminalAt            *time.Time `json:"terminal_at,omitempty"`

	// BackendHandle is opaque per-adapter bookkeeping (e.g. a SLURM job id,
	// a Kubernetes Job name, a remote PID).
	BackendHandle string     `json:"backend_handle"`
	Adapter       BackendTag `json:"adapter"`

	// UnknownStreak counts consecutive polls that returned StateUnknown;
	// reset to 0 on any other observation.
	UnknownStreak int `json:"unknown_streak,omitempty"`

	// UnknownSince marks when the current unknown streak began, so the
	// executor can bound it by wall-clock UnknownGrace rather than by poll
	// count (which varies with PollInterval). Reset to nil on any
	// non-unknown observation.
	UnknownSince *time.Time `json:"unknown_since,omitempty"`
}

// JobResponse is the minimal status payload returned to a caller that only
// wants to know where a job stands.
type JobResponse struct {
	JobID string   `json:"job_id"`
	State JobState `json:"state"`
}
