package executor

import (
	"context"
	"sync"
	"time"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

// jobRecord is the registry's per-job bookkeeping: the current Job
// snapshot, the adapter instance that owns it, and the condition variable
// wait() blocks on until the job reaches a terminal state.
type jobRecord struct {
	job     models.Job
	adapter backend.Adapter
	cond    *sync.Cond
}

// Registry is the sync.Mutex-guarded job table (spec §4.6, §5). Mutations
// that involve a blocking adapter call follow a copy-out/release/call/
// commit cycle: callers read a job snapshot via Get/adapterFor, release the
// lock implicitly by returning, perform the adapter call, then call commit
// to apply the result. The lock is never held across a Transport or adapter
// call.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*jobRecord
}

// NewRegistry returns an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*jobRecord)}
}

// register inserts a freshly submitted job and returns its jobRecord. The
// record's condition variable shares the registry's own mutex so commit's
// Broadcast is always made under the same lock waiters check State with.
func (r *Registry) register(job models.Job, adapter backend.Adapter) *jobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &jobRecord{job: job, adapter: adapter}
	rec.cond = sync.NewCond(&r.mu)
	r.jobs[job.ID] = rec
	return rec
}

// Get copies out the current snapshot of a job.
func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return rec.job, true
}

// Snapshot copies out every job currently tracked, terminal or not, for
// status/introspection reporting. Order is unspecified.
func (r *Registry) Snapshot() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Job, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, rec.job)
	}
	return out
}

// adapterFor returns the adapter bound to a job, for callers (poller,
// worker pool) driving it without holding the registry lock across the
// call.
func (r *Registry) adapterFor(id string) (backend.Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return rec.adapter, true
}

// commit applies fn to the job's latest snapshot and stores the result. fn
// must not block — any suspending work happens before commit is called.
// Waiters are woken exactly when the job transitions from non-terminal to
// terminal.
func (r *Registry) commit(id string, fn func(models.Job) models.Job) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	wasTerminal := rec.job.State.Terminal()
	rec.job = fn(rec.job)
	if !wasTerminal && rec.job.State.Terminal() {
		rec.cond.Broadcast()
	}
	return rec.job, true
}

// deregister removes a job from the table entirely; called once cleanup
// has run (or was skipped) after its ResultArtifact has been delivered.
func (r *Registry) deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// waitTerminal blocks until the named job reaches a terminal state, ctx is
// cancelled, or timeout (if positive) elapses, returning the job's snapshot
// at whichever point it stopped waiting.
func (r *Registry) waitTerminal(ctx context.Context, id string, timeout time.Duration) (models.Job, error) {
	r.mu.Lock()
	rec, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return models.Job{}, ErrJobNotFound
	}

	var deadline time.Time
	var timer *time.Timer
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer = time.AfterFunc(timeout, rec.cond.Broadcast)
		defer timer.Stop()
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				rec.cond.Broadcast()
			case <-stopWatch:
			}
		}()
	}

	for !rec.job.State.Terminal() {
		if err := ctx.Err(); err != nil {
			job := rec.job
			r.mu.Unlock()
			return job, err
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			job := rec.job
			r.mu.Unlock()
			return job, ErrWaitTimeout
		}
		rec.cond.Wait()
	}

	job := rec.job
	r.mu.Unlock()
	return job, nil
}
