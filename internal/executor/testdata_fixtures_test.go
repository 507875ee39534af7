package executor

import (
	"context"
	"sync"
	"time"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

// fakeAdapter is a scriptable backend.Adapter for executor tests: each
// field is an optional override; a nil override falls back to a harmless
// default so tests only need to specify the behavior they're exercising.
type fakeAdapter struct {
	mu sync.Mutex

	submitFunc func(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error)
	probeFunc  func(ctx context.Context, backendID string) (models.JobState, error)
	cancelFunc func(ctx context.Context, backendID string) error
	cleanupErr error

	probeCalls  int
	cancelCalls int
	cleanupDirs []string
}

func (f *fakeAdapter) Submit(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error) {
	if f.submitFunc != nil {
		return f.submitFunc(ctx, bundle, spec)
	}
	return "backend-1", "/remote/work/backend-1", nil
}

func (f *fakeAdapter) Probe(ctx context.Context, backendID string) (models.JobState, error) {
	f.mu.Lock()
	f.probeCalls++
	f.mu.Unlock()
	if f.probeFunc != nil {
		return f.probeFunc(ctx, backendID)
	}
	return models.StateRunning, nil
}

func (f *fakeAdapter) Cancel(ctx context.Context, backendID string) error {
	f.mu.Lock()
	f.cancelCalls++
	f.mu.Unlock()
	if f.cancelFunc != nil {
		return f.cancelFunc(ctx, backendID)
	}
	return nil
}

func (f *fakeAdapter) StreamErrorContext(ctx context.Context, backendID string) (backend.StreamTail, error) {
	return backend.StreamTail{}, nil
}

func (f *fakeAdapter) ResultLocations(ctx context.Context, backendID, remoteDir string) (backend.ResultLocations, error) {
	return backend.ResultLocations{SuccessPath: remoteDir + "/result.json"}, nil
}

func (f *fakeAdapter) FetchResultFile(ctx context.Context, backendID string, path string) ([]byte, error) {
	return nil, nil
}

func (f *fakeAdapter) Cleanup(ctx context.Context, remoteDir string) error {
	f.mu.Lock()
	f.cleanupDirs = append(f.cleanupDirs, remoteDir)
	f.mu.Unlock()
	return f.cleanupErr
}

func (f *fakeAdapter) PreferredPollInterval() (time.Duration, bool) {
	return 0, false
}

func (f *fakeAdapter) ProbeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls
}

func (f *fakeAdapter) CancelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelCalls
}

// fakeHarvester returns a fixed artifact (or error) regardless of job, for
// tests that only care about executor wiring, not harvesting logic.
type fakeHarvester struct {
	artifact models.ResultArtifact
	err      error

	mu    sync.Mutex
	calls int
}

func (h *fakeHarvester) Harvest(ctx context.Context, job models.Job, adapter backend.Adapter) (models.ResultArtifact, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.artifact, h.err
}

var _ backend.Adapter = (*fakeAdapter)(nil)
var _ Harvester = (*fakeHarvester)(nil)

func localTestSpec(adapterKind models.ClusterKind) models.JobSpec {
	return models.JobSpec{
		Target:            models.ClusterTarget{Kind: adapterKind, RemoteWorkDir: "/remote/work"},
		SubmissionTimeout: 2 * time.Second,
		PollInterval:      50 * time.Millisecond,
		UnknownGrace:      500 * time.Millisecond,
	}
}
