// Package executor owns the job registry and drives the job state machine
// on behalf of the dispatch surface (spec §4.6): submitting to a backend
// adapter, polling it to terminal state, handing terminal jobs to a
// harvester, and running cleanup once a result has been delivered.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

// Harvester resolves a terminal job into a ResultArtifact (spec §4.8). The
// executor depends only on this narrow contract so internal/harvester can
// be wired in without an import cycle.
type Harvester interface {
	Harvest(ctx context.Context, job models.Job, adapter backend.Adapter) (models.ResultArtifact, error)
}

// PersistentStore mirrors job bookkeeping into storage that survives
// process restarts (spec §5: optional, off by default, persists job
// bookkeeping only, not a workflow engine). The in-memory registry stays
// authoritative for the life of this process: a Save/Delete failure here is
// logged and otherwise ignored, never surfaced to the caller that
// triggered it.
type PersistentStore interface {
	Save(ctx context.Context, job models.Job) error
	Delete(ctx context.Context, jobID string) error
}

// Config holds the executor's tunable defaults, each named directly in
// spec §4.6/§5.
type Config struct {
	// PollIntervalCeiling bounds every adapter's PreferredPollInterval.
	PollIntervalCeiling time.Duration

	// BackoffBase and BackoffCap govern the transient-probe-error backoff
	// (multiplier 2, reset on first success).
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// WorkerPoolCapacity bounds concurrent adapter submit/cancel/probe/
	// harvest calls.
	WorkerPoolCapacity int64

	CleanupOnSuccess bool
	CleanupOnFailure bool

	// ProbeTimeout bounds a single adapter Probe call.
	ProbeTimeout time.Duration

	Logger *zap.Logger

	// Store is the optional persistent backing (internal/registrystore);
	// nil disables it, the documented default.
	Store PersistentStore
}

// DefaultConfig returns the executor's documented defaults.
func DefaultConfig() Config {
	return Config{
		PollIntervalCeiling: 30 * time.Second,
		BackoffBase:         1 * time.Second,
		BackoffCap:          30 * time.Second,
		WorkerPoolCapacity:  16,
		CleanupOnSuccess:    true,
		CleanupOnFailure:    true,
		ProbeTimeout:        20 * time.Second,
	}
}

// Executor wires the registry, poller, bounded worker pool, backend
// adapters, and a result harvester into the operations spec §4.6 names:
// Submit, Wait, Cancel, Status.
type Executor struct {
	cfg       Config
	registry  *Registry
	pool      *workerPool
	poller    *poller
	harvester Harvester
	adapters  map[models.BackendTag]backend.Adapter
	logger    *zap.Logger
	store     PersistentStore

	backoffMu sync.Mutex
	backoff   map[string]time.Duration
}

// New constructs an Executor and starts its poller goroutine. Stop must be
// called to release it.
func New(cfg Config, adapters map[models.BackendTag]backend.Adapter, harvester Harvester) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WorkerPoolCapacity < 1 {
		cfg.WorkerPoolCapacity = 16
	}

	e := &Executor{
		cfg:       cfg,
		registry:  NewRegistry(),
		pool:      newWorkerPool(cfg.WorkerPoolCapacity),
		harvester: harvester,
		adapters:  adapters,
		logger:    cfg.Logger,
		store:     cfg.Store,
		backoff:   make(map[string]time.Duration),
	}
	e.poller = newPoller(e.pool, e.probeOnce, e.logger)
	go e.poller.run()
	return e
}

// Stop halts the poller goroutine. Outstanding remote jobs are not
// cancelled (spec §5: "jobs may outlive the client process").
func (e *Executor) Stop() {
	e.poller.stopRun()
}

// Stats summarizes the executor's current load for operational
// introspection (internal/statusserver's worker-stats endpoint); nothing in
// the dispatch core reads it back.
type Stats struct {
	WorkerPoolCapacity int64
	WorkerPoolActive   int64

	TrackedJobs  int
	RunningJobs  int
	TerminalJobs int
}

// Stats reports the worker pool's current occupancy and a breakdown of
// every job the registry still has a record for.
func (e *Executor) Stats() Stats {
	capacity, active := e.pool.snapshot()
	jobs := e.registry.Snapshot()

	s := Stats{WorkerPoolCapacity: capacity, WorkerPoolActive: active, TrackedJobs: len(jobs)}
	for _, job := range jobs {
		if job.State.Terminal() {
			s.TerminalJobs++
		} else {
			s.RunningJobs++
		}
	}
	return s
}

// persist mirrors job to the optional persistent store, best-effort; a
// nil store (the default) makes this a no-op.
func (e *Executor) persist(job models.Job) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Save(ctx, job); err != nil {
		e.logger.Warn("persistent store save failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (e *Executor) persistDelete(jobID string) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Delete(ctx, jobID); err != nil {
		e.logger.Warn("persistent store delete failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func backendTagFor(kind models.ClusterKind) models.BackendTag {
	switch {
	case kind.IsBatchScheduler():
		return models.BackendBatch
	case kind == models.KindKubernetes:
		return models.BackendKubernetes
	case kind == models.KindSSH:
		return models.BackendSSH
	case kind == models.KindProvisionedVM:
		return models.BackendProvisionedVM
	default:
		return models.BackendLocal
	}
}

// Submit packages a resolved JobSpec against its backend adapter, records
// the resulting Job, and schedules its first poll. The returned job id is
// the token the dispatch surface's JobHandle wraps.
func (e *Executor) Submit(ctx context.Context, spec models.JobSpec) (string, error) {
	tag := backendTagFor(spec.Target.Kind)
	adapter, ok := e.adapters[tag]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoAdapter, tag)
	}

	job := models.Job{
		ID:          uuid.NewString(),
		State:       models.StatePending,
		Spec:        spec,
		SubmittedAt: time.Now(),
		Adapter:     tag,
	}
	e.registry.register(job, adapter)
	e.persist(job)

	submitTimeout := spec.SubmissionTimeout
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}

	var backendID, remoteDir string
	var submitErr error
	callErr := e.pool.call(ctx, func() {
		submitCtx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		backendID, remoteDir, submitErr = adapter.Submit(submitCtx, spec.Bundle, spec)
	})
	if callErr != nil {
		e.registry.deregister(job.ID)
		return "", callErr
	}

	if submitErr != nil {
		failed, _ := e.registry.commit(job.ID, func(j models.Job) models.Job {
			j.State = models.StateFailed
			markTerminal(&j, time.Now())
			return j
		})
		e.persist(failed)
		return job.ID, fmt.Errorf("submit rejected: %w", submitErr)
	}

	now := time.Now()
	running, _ := e.registry.commit(job.ID, func(j models.Job) models.Job {
		j.BackendHandle = backendID
		j.RemoteDir = remoteDir
		if j.State.ValidTransition(models.StateRunning) {
			j.State = models.StateRunning
		}
		if j.FirstObservedActiveAt == nil {
			j.FirstObservedActiveAt = &now
		}
		return j
	})
	e.persist(running)

	e.poller.schedule(job.ID, now.Add(e.pollIntervalFor(spec)))
	return job.ID, nil
}

// Status reports a job's current state without any side effects.
func (e *Executor) Status(jobID string) (models.JobState, error) {
	job, ok := e.registry.Get(jobID)
	if !ok {
		return "", ErrJobNotFound
	}
	return job.State, nil
}

// Wait blocks until jobID reaches a terminal state (or ctx/timeout elapses),
// then harvests its result and schedules cleanup. A timeout expiring does
// not cancel the job (spec §5).
func (e *Executor) Wait(ctx context.Context, jobID string, timeout time.Duration) (models.ResultArtifact, error) {
	job, err := e.registry.waitTerminal(ctx, jobID, timeout)
	if err != nil {
		return models.ResultArtifact{}, err
	}

	adapter, ok := e.registry.adapterFor(jobID)
	if !ok {
		return models.ResultArtifact{}, ErrJobNotFound
	}

	var artifact models.ResultArtifact
	var harvestErr error
	callErr := e.pool.call(ctx, func() {
		artifact, harvestErr = e.harvester.Harvest(ctx, job, adapter)
	})
	if callErr != nil {
		return models.ResultArtifact{}, callErr
	}
	if harvestErr != nil {
		return models.ResultArtifact{}, harvestErr
	}

	e.scheduleCleanup(job, artifact)
	return artifact, nil
}

// Cancel attempts backend-native cancellation and optimistically marks the
// job cancelled. The job is also removed from the poll schedule, so no
// later probe revisits the cancelled state; an adapter Cancel error is only
// logged.
func (e *Executor) Cancel(ctx context.Context, jobID string) error {
	adapter, ok := e.registry.adapterFor(jobID)
	if !ok {
		return ErrJobNotFound
	}

	updated, ok := e.registry.commit(jobID, func(j models.Job) models.Job {
		if !j.State.Terminal() {
			j.State = models.StateCancelled
			markTerminal(&j, time.Now())
		}
		return j
	})
	if !ok {
		return ErrJobNotFound
	}
	e.persist(updated)
	e.poller.cancelSchedule(jobID)

	backendID := updated.BackendHandle
	return e.pool.call(ctx, func() {
		if err := adapter.Cancel(ctx, backendID); err != nil {
			e.logger.Warn("backend cancel failed; state already set optimistically",
				zap.String("job_id", jobID), zap.Error(err))
		}
	})
}

// scheduleCleanup runs cleanup asynchronously, strictly after artifact has
// been delivered to this call's caller (spec §5), then deregisters the job.
func (e *Executor) scheduleCleanup(job models.Job, artifact models.ResultArtifact) {
	shouldClean := (artifact.Ok() && e.cfg.CleanupOnSuccess) || (!artifact.Ok() && e.cfg.CleanupOnFailure)
	go func() {
		if shouldClean {
			if adapter, ok := e.registry.adapterFor(job.ID); ok {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				err := e.pool.call(ctx, func() {
					if err := adapter.Cleanup(ctx, job.RemoteDir); err != nil {
						e.logger.Warn("cleanup failed", zap.String("job_id", job.ID), zap.Error(err))
					}
				})
				cancel()
				if err != nil {
					e.logger.Warn("cleanup worker pool unavailable", zap.String("job_id", job.ID), zap.Error(err))
				}
			}
		}
		e.registry.deregister(job.ID)
		e.persistDelete(job.ID)
	}()
}

// probeOnce is the poller's callback for one due job: probe, fold the
// observation through the state machine, commit, and reschedule (with
// backoff on transient error) unless the job is now terminal.
func (e *Executor) probeOnce(jobID string) {
	job, ok := e.registry.Get(jobID)
	if !ok || job.State.Terminal() {
		return
	}
	adapter, ok := e.registry.adapterFor(jobID)
	if !ok {
		return
	}

	timeout := e.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	observed, probeErr := adapter.Probe(ctx, job.BackendHandle)
	now := time.Now()

	if probeErr != nil {
		e.logger.Debug("transient probe error", zap.String("job_id", jobID), zap.Error(probeErr))
		e.poller.schedule(jobID, now.Add(e.nextBackoff(jobID)))
		return
	}
	e.resetBackoff(jobID)

	updated, ok := e.registry.commit(jobID, func(j models.Job) models.Job {
		return applyObservation(j, observed, now)
	})
	if !ok {
		return
	}
	e.persist(updated)
	if updated.State.Terminal() {
		return
	}

	e.poller.schedule(jobID, now.Add(e.pollIntervalFor(updated.Spec)))
}

func (e *Executor) pollIntervalFor(spec models.JobSpec) time.Duration {
	interval := spec.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
		if adapter, ok := e.adapters[backendTagFor(spec.Target.Kind)]; ok {
			if preferred, ok := adapter.PreferredPollInterval(); ok && preferred > 0 {
				interval = preferred
			}
		}
	}
	if e.cfg.PollIntervalCeiling > 0 && interval > e.cfg.PollIntervalCeiling {
		interval = e.cfg.PollIntervalCeiling
	}
	return interval
}

func (e *Executor) nextBackoff(jobID string) time.Duration {
	base := e.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	ceiling := e.cfg.BackoffCap
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()
	current, ok := e.backoff[jobID]
	if !ok || current <= 0 {
		current = base
	} else {
		current *= 2
		if current > ceiling {
			current = ceiling
		}
	}
	e.backoff[jobID] = current
	return current
}

func (e *Executor) resetBackoff(jobID string) {
	e.backoffMu.Lock()
	delete(e.backoff, jobID)
	e.backoffMu.Unlock()
}
