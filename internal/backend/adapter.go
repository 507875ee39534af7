// Package backend defines the capability contract the Executor Core drives
// every execution destination through. Concrete families (batch schedulers,
// Kubernetes, SSH, provisioned VMs) live in subpackages and are adapted to
// this interface at wiring time; the executor never imports a subpackage
// directly.
package backend

import (
	"context"
	"time"

	"github.com/stlpine/clustergo/pkg/models"
)

// StreamTail carries a bounded window of a job's stdout/stderr, pulled on
// demand for diagnostics rather than streamed continuously.
type StreamTail struct {
	Stdout string
	Stderr string
}

// ResultLocations names where a terminal job's artifacts should appear.
// Either path may be empty if the backend has no filesystem surface for it
// (e.g. Kubernetes routes results through a log line instead).
type ResultLocations struct {
	SuccessPath string
	FailurePath string
}

// Adapter is the five-operation contract every backend family implements
// (spec §4.7): submit, probe, cancel, pull diagnostic context, and resolve
// where results will land. Cleanup is a sixth, separate operation since it
// runs independently of job outcome.
type Adapter interface {
	// Submit stages the bundle and starts the job, returning the backend's
	// own handle for it (a SLURM job id, a Kubernetes Job name, a remote
	// PID) plus the remote directory the job was staged into.
	Submit(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (backendID string, remoteDir string, err error)

	// Probe reports the job's current observed state. Returning
	// models.StateUnknown is valid and expected to happen transiently; the
	// executor is responsible for escalating a persistent unknown to
	// failed{Lost}, not the adapter.
	Probe(ctx context.Context, backendID string) (models.JobState, error)

	// Cancel requests backend-native cancellation. It is best-effort: the
	// executor transitions the in-memory state optimistically and
	// reconciles from the next Probe regardless of Cancel's outcome.
	Cancel(ctx context.Context, backendID string) error

	// StreamErrorContext pulls a bounded tail of stdout/stderr, used by the
	// harvester to annotate a failure and by callers diagnosing a stuck job.
	StreamErrorContext(ctx context.Context, backendID string) (StreamTail, error)

	// ResultLocations resolves the filesystem paths (or equivalent) the
	// harvester should check once the job reaches a terminal state.
	ResultLocations(ctx context.Context, backendID string, remoteDir string) (ResultLocations, error)

	// FetchResultFile reads back one of the paths ResultLocations named.
	// Backends with no shared filesystem (Kubernetes) always error here;
	// the harvester falls back to the sentinel lines StreamErrorContext
	// already exposes in that case.
	FetchResultFile(ctx context.Context, backendID string, path string) ([]byte, error)

	// Cleanup removes the remote job directory. Failures are logged by the
	// caller but never surfaced to a dispatch caller (spec §4.6).
	Cleanup(ctx context.Context, remoteDir string) error

	// PreferredPollInterval is the adapter's suggested probe cadence; the
	// executor applies a configured ceiling on top of it.
	PreferredPollInterval() (interval time.Duration, ok bool)
}
