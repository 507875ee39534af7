package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// workerPool bounds concurrent adapter calls (submit, cancel, probe,
// harvest retrieval) so a burst of due jobs can never stall the poller
// goroutine behind a slow transport (spec §4.6, §5: default capacity 16).
type workerPool struct {
	capacity int64
	sem      *semaphore.Weighted
	active   atomic.Int64
}

func newWorkerPool(capacity int64) *workerPool {
	if capacity < 1 {
		capacity = 1
	}
	return &workerPool{capacity: capacity, sem: semaphore.NewWeighted(capacity)}
}

// call acquires a slot, runs fn synchronously, and releases the slot before
// returning. Used where the caller needs fn's side effects committed before
// it can proceed (Submit needs the backend id, Wait needs the harvested
// artifact).
func (p *workerPool) call(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.sem.Release(1)
	}()
	fn()
	return nil
}

// snapshot reports the pool's configured capacity and its in-flight call
// count at the moment of the call, for status/introspection reporting only
// (spec's dispatch core never consults it).
func (p *workerPool) snapshot() (capacity, active int64) {
	return p.capacity, p.active.Load()
}
