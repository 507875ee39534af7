package executor

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// pollEntry is one job's position in the due-instant min-heap.
type pollEntry struct {
	jobID      string
	nextPollAt time.Time
	index      int
}

// pollHeap orders entries by nextPollAt; container/heap's Push/Pop give it
// O(log n) insert and removal, the shape spec §4.6/§5 names explicitly
// ("a min-heap of (next_poll_instant, job_id) entries").
type pollHeap []*pollEntry

func (h pollHeap) Len() int           { return len(h) }
func (h pollHeap) Less(i, j int) bool { return h[i].nextPollAt.Before(h[j].nextPollAt) }
func (h pollHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pollHeap) Push(x interface{}) {
	e := x.(*pollEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *pollHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// poller is the single long-lived goroutine that drives probing. It holds
// the due-instant heap and a plain map for O(1) lookup/update of an
// existing job's entry, and resets a time.Timer to the next due instant on
// every change rather than running a fixed-rate ticker — so jobs whose due
// instants happen to coincide are probed on the same tick, matching spec
// §4.6's "polling is aligned so that concurrent jobs share ticks."
type poller struct {
	mu      sync.Mutex
	entries map[string]*pollEntry
	heap    pollHeap

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	pool   *workerPool
	probe  func(jobID string)
	logger *zap.Logger
}

func newPoller(pool *workerPool, probe func(jobID string), logger *zap.Logger) *poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &poller{
		entries: make(map[string]*pollEntry),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		pool:    pool,
		probe:   probe,
		logger:  logger,
	}
	heap.Init(&p.heap)
	return p
}

// schedule sets (or reschedules) the next due instant for jobID.
func (p *poller) schedule(jobID string, at time.Time) {
	p.mu.Lock()
	if e, ok := p.entries[jobID]; ok {
		e.nextPollAt = at
		heap.Fix(&p.heap, e.index)
	} else {
		e := &pollEntry{jobID: jobID, nextPollAt: at}
		heap.Push(&p.heap, e)
		p.entries[jobID] = e
	}
	p.mu.Unlock()
	p.nudge()
}

// cancelSchedule removes jobID from the heap, e.g. once it reaches a
// terminal state and no further probing is needed.
func (p *poller) cancelSchedule(jobID string) {
	p.mu.Lock()
	if e, ok := p.entries[jobID]; ok {
		heap.Remove(&p.heap, e.index)
		delete(p.entries, jobID)
	}
	p.mu.Unlock()
}

func (p *poller) nudge() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run is the poller's main loop; it must be started in its own goroutine
// and stopped once via stopRun.
func (p *poller) run() {
	defer close(p.done)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		wait, has := p.nextWait()
		if has {
			timer.Reset(wait)
		}

		select {
		case <-p.stop:
			return
		case <-p.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			continue
		case <-timer.C:
			p.fireDue()
		}
	}
}

func (p *poller) nextWait() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heap.Len() == 0 {
		return 0, false
	}
	next := p.heap[0].nextPollAt
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func (p *poller) fireDue() {
	now := time.Now()
	var due []string
	p.mu.Lock()
	for p.heap.Len() > 0 && !p.heap[0].nextPollAt.After(now) {
		e := heap.Pop(&p.heap).(*pollEntry)
		delete(p.entries, e.jobID)
		due = append(due, e.jobID)
	}
	p.mu.Unlock()

	for _, jobID := range due {
		jobID := jobID
		// Spawned immediately so a full worker pool never stalls this
		// loop; the goroutine itself blocks on the pool's semaphore.
		go func() {
			if err := p.pool.call(context.Background(), func() { p.probe(jobID) }); err != nil {
				p.logger.Warn("poller: probe dispatch abandoned", zap.String("job_id", jobID), zap.Error(err))
			}
		}()
	}
}

func (p *poller) stopRun() {
	close(p.stop)
	<-p.done
}
