package backend

import (
	"sync"

	"github.com/stlpine/clustergo/pkg/models"
)

// TrackedSubmission is what a concrete Adapter remembers about one
// backend_id between Submit and its later Probe/Cancel/Cleanup calls.
type TrackedSubmission struct {
	BackendID    string
	Target       models.ClusterTarget
	RemoteDir    string
	FunctionName string
}

// SubmissionTracker lets an Adapter recover which ClusterTarget and remote
// directory a backend_id (or, for Cleanup, a bare remote directory)
// belongs to, since the Adapter interface's later calls are keyed only by
// backend_id or remote_dir (spec §4.7 treats those as self-sufficient, but
// every backend family actually needs the issuing host too). Mirrors the
// in-memory map-plus-mutex idiom used for job bookkeeping throughout this
// module.
type SubmissionTracker struct {
	mu    sync.RWMutex
	byID  map[string]TrackedSubmission
	byDir map[string]TrackedSubmission
}

func NewSubmissionTracker() *SubmissionTracker {
	return &SubmissionTracker{
		byID:  make(map[string]TrackedSubmission),
		byDir: make(map[string]TrackedSubmission),
	}
}

func (t *SubmissionTracker) Put(backendID string, rec TrackedSubmission) {
	rec.BackendID = backendID
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[backendID] = rec
	t.byDir[rec.RemoteDir] = rec
}

func (t *SubmissionTracker) Get(backendID string) (TrackedSubmission, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byID[backendID]
	return rec, ok
}

func (t *SubmissionTracker) GetByRemoteDir(remoteDir string) (TrackedSubmission, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byDir[remoteDir]
	return rec, ok
}

func (t *SubmissionTracker) Delete(backendID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.byID[backendID]; ok {
		delete(t.byDir, rec.RemoteDir)
	}
	delete(t.byID, backendID)
}
