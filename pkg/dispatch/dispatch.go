// Package dispatch is the user-facing surface described in spec §4.9: it
// turns an ordinary Go function into a callable that may run in-process or
// be shipped to a remote cluster, depending on the merged configuration in
// effect at call time.
//
// Go has no decorator syntax, so the "decoration" step spec.md describes is
// modeled as Wrap, a generic constructor returning a *Dispatched[In, Out]
// that closes over the captured function. Call drives the synchronous
// path; Submit drives the asynchronous one, returning a JobHandle.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stlpine/clustergo/internal/bundle"
	"github.com/stlpine/clustergo/internal/depanalysis"
	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/pkg/models"
)

// ErrResultTimeout is returned by JobHandle.Result when timeout elapses
// before the job reaches a terminal state. It never transitions the job
// (spec §5): the underlying call, local or remote, keeps running.
var ErrResultTimeout = errors.New("dispatch: result timed out before completion")

// ErrCannotCancelLocal is returned by JobHandle.Cancel for a handle created
// against an in-process call: there is no backend submission to cancel.
var ErrCannotCancelLocal = errors.New("dispatch: local calls cannot be cancelled")

// Runtime bundles the collaborators a non-local dispatch needs: the
// executor that owns job submission/polling/harvesting, the packager that
// turns a captured callable into a shippable bundle, and the directory
// relative paths in the callable's dependency report are resolved against.
// A Dispatched value whose merged target is always local never touches
// Runtime, so its zero value is a valid argument to Wrap in that case.
type Runtime struct {
	Executor   *executor.Executor
	Packager   *bundle.Packager
	WorkingDir string
}

// resolved is the merged configuration for one call: process defaults,
// then decoration defaults, then per-call overrides, applied in that order
// (spec §4.9).
type resolved struct {
	target            models.ClusterTarget
	resources         models.ResourceRequest
	submissionTimeout time.Duration
	pollInterval      time.Duration
	wallClockLimit    time.Duration
	unknownGrace      time.Duration
}

func defaultResolved() resolved {
	return resolved{
		target:            models.ClusterTarget{Kind: models.KindLocal},
		submissionTimeout: 30 * time.Second,
		pollInterval:      2 * time.Second,
		unknownGrace:      60 * time.Second,
	}
}

// Option adjusts one field of a call's resolved configuration. Options are
// applied left to right within a layer, and layers are applied process
// defaults, decoration defaults, per-call overrides, so a later layer's
// option always wins over an earlier one touching the same field.
type Option func(*resolved)

// WithTarget sets the cluster target a call is dispatched against.
func WithTarget(t models.ClusterTarget) Option {
	return func(r *resolved) { r.target = t }
}

// WithResources sets the resource request a non-local dispatch asks its
// backend for.
func WithResources(rr models.ResourceRequest) Option {
	return func(r *resolved) { r.resources = rr }
}

// WithSubmissionTimeout bounds how long the backend adapter's Submit call
// may take before it is treated as a submission rejection.
func WithSubmissionTimeout(d time.Duration) Option {
	return func(r *resolved) { r.submissionTimeout = d }
}

// WithPollInterval sets the base interval between the executor's probe
// calls for jobs from this call.
func WithPollInterval(d time.Duration) Option {
	return func(r *resolved) { r.pollInterval = d }
}

// WithWallClockLimit bounds how long a dispatched job may run before the
// executor forces it to StateTimeout, independent of any backend-side
// accounting.
func WithWallClockLimit(d time.Duration) Option {
	return func(r *resolved) { r.wallClockLimit = d }
}

// WithUnknownGrace bounds how long a job may sit in StateUnknown before the
// executor forces it to failed{Lost}.
func WithUnknownGrace(d time.Duration) Option {
	return func(r *resolved) { r.unknownGrace = d }
}

var (
	processMu       sync.RWMutex
	processDefaults []Option
)

// SetProcessDefaults installs the weakest configuration layer, applied
// before every Dispatched value's own decoration defaults. It is meant to
// be called once at process startup (e.g. "every dispatch in this process
// targets our default cluster unless told otherwise").
func SetProcessDefaults(opts ...Option) {
	processMu.Lock()
	defer processMu.Unlock()
	processDefaults = append([]Option(nil), opts...)
}

func currentProcessDefaults() []Option {
	processMu.RLock()
	defer processMu.RUnlock()
	return processDefaults
}

func merge(layers ...[]Option) resolved {
	r := defaultResolved()
	for _, layer := range layers {
		for _, opt := range layer {
			opt(&r)
		}
	}
	return r
}

// Dispatched wraps a captured callable plus its decoration-level defaults.
// It is safe for concurrent use: Call and Submit share no mutable state
// beyond the lazily-computed, sync.Once-guarded capture of fn's own source.
type Dispatched[In, Out any] struct {
	fn             func(context.Context, In) (Out, error)
	rt             Runtime
	decorationOpts []Option

	captureOnce sync.Once
	captured    *depanalysis.CapturedFunction
	report      models.DependencyReport
	captureErr  error
}

// Wrap captures fn's own declaration (for later dependency analysis and
// bundling) and attaches decoration-level default options. fn's source is
// not actually parsed until the first non-local Call or Submit: purely
// local use of the returned value never pays the AST-capture cost and never
// surfaces a capture error.
func Wrap[In, Out any](fn func(context.Context, In) (Out, error), rt Runtime, opts ...Option) *Dispatched[In, Out] {
	return &Dispatched[In, Out]{fn: fn, rt: rt, decorationOpts: opts}
}

func (d *Dispatched[In, Out]) mergeOptions(callOpts []Option) resolved {
	return merge(currentProcessDefaults(), d.decorationOpts, callOpts)
}

// capture runs depanalysis.Capture/NewAnalyzer/Analyze exactly once,
// regardless of how many non-local calls are made through d.
func (d *Dispatched[In, Out]) capture() (*depanalysis.CapturedFunction, models.DependencyReport, error) {
	d.captureOnce.Do(func() {
		cf, err := depanalysis.Capture(d.fn)
		if err != nil {
			d.captureErr = fmt.Errorf("dispatch: %w", err)
			return
		}
		analyzer, err := depanalysis.NewAnalyzer(cf)
		if err != nil {
			d.captureErr = fmt.Errorf("dispatch: %w", err)
			return
		}
		d.captured = cf
		d.report = analyzer.Analyze(cf)
	})
	return d.captured, d.report, d.captureErr
}

// Call invokes fn synchronously (spec §4.9). When the merged target's kind
// is local, fn runs in-process unchanged; otherwise the call is packaged,
// submitted, and waited on, and a remote failure comes back as a
// *RemoteError rather than a local Go panic or exception.
func (d *Dispatched[In, Out]) Call(ctx context.Context, in In, callOpts ...Option) (Out, error) {
	cfg := d.mergeOptions(callOpts)
	if cfg.target.Kind == models.KindLocal {
		return d.fn(ctx, in)
	}

	var zero Out
	jobID, err := d.submitJob(ctx, in, cfg)
	if err != nil {
		return zero, err
	}
	artifact, err := d.rt.Executor.Wait(ctx, jobID, 0)
	if err != nil {
		if isWaitTimeout(err) {
			return zero, ErrResultTimeout
		}
		return zero, fmt.Errorf("dispatch: %w", err)
	}
	return decodeArtifact[Out](artifact)
}

// Submit invokes fn asynchronously and returns a handle to it (spec §4.9).
// A local target still produces a valid handle: fn starts running
// immediately in its own goroutine rather than going through the executor,
// since there is no backend submission to track.
func (d *Dispatched[In, Out]) Submit(ctx context.Context, in In, callOpts ...Option) (*JobHandle[Out], error) {
	cfg := d.mergeOptions(callOpts)
	if cfg.target.Kind == models.KindLocal {
		return newLocalHandle(ctx, d.fn, in), nil
	}

	jobID, err := d.submitJob(ctx, in, cfg)
	if err != nil {
		return nil, err
	}
	return newRemoteHandle[Out](d.rt.Executor, jobID), nil
}

// submitJob runs the packaging pipeline (capture, analyze, encode args,
// package, submit) spec §4 draws as Dispatch Surface → Dependency Analyzer
// → Bundle Packager → Executor Core.
func (d *Dispatched[In, Out]) submitJob(ctx context.Context, in In, cfg resolved) (string, error) {
	if d.rt.Executor == nil || d.rt.Packager == nil {
		return "", fmt.Errorf("dispatch: no runtime configured for non-local target kind %q", cfg.target.Kind)
	}
	if err := cfg.target.Validate(); err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}
	if err := cfg.resources.Validate(cfg.target.Kind); err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}

	captured, report, err := d.capture()
	if err != nil {
		return "", err
	}

	argsPayload, err := bundle.EncodeArgsPayload(in)
	if err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}

	ref, err := d.rt.Packager.Package(bundle.PackageInput{
		Captured:    captured,
		Report:      report,
		Target:      cfg.target,
		ArgsPayload: argsPayload,
		WorkingDir:  d.rt.WorkingDir,
	})
	if err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}

	spec := models.JobSpec{
		Target:            cfg.target,
		Resources:         cfg.resources,
		Bundle:            ref,
		Args:              argsPayload,
		SubmissionTimeout: cfg.submissionTimeout,
		PollInterval:      cfg.pollInterval,
		WallClockLimit:    cfg.wallClockLimit,
		UnknownGrace:      cfg.unknownGrace,
	}

	jobID, err := d.rt.Executor.Submit(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}
	return jobID, nil
}

// Run is a one-shot form of Wrap followed by Call, for callers (such as a
// CLI entry point) that dispatch a function exactly once rather than
// decorating a long-lived callable.
func Run[In, Out any](ctx context.Context, fn func(context.Context, In) (Out, error), rt Runtime, in In, opts ...Option) (Out, error) {
	return Wrap[In, Out](fn, rt, opts...).Call(ctx, in)
}

// decodeArtifact converts a harvested ResultArtifact into a typed value or
// a *RemoteError, the local representation of a remote failure.
func decodeArtifact[Out any](artifact models.ResultArtifact) (Out, error) {
	var zero Out
	switch {
	case artifact.Success != nil:
		if err := json.Unmarshal(artifact.Success.Value, &zero); err != nil {
			return zero, fmt.Errorf("dispatch: decode result: %w", err)
		}
		return zero, nil
	case artifact.Failure != nil:
		return zero, newRemoteError(artifact.Failure)
	default:
		return zero, fmt.Errorf("dispatch: harvester returned an empty result artifact")
	}
}

// RemoteError reports a failure that happened on the remote side (or in
// the executor's own bookkeeping while trying to reach it), carrying
// everything the harvester recovered so a caller can diagnose without a
// second round trip to the cluster.
type RemoteError struct {
	Kind            models.ErrorKind
	Message         string
	RemoteTraceback string
	CapturedStdout  string
	CapturedStderr  string
}

func (e *RemoteError) Error() string {
	if e.RemoteTraceback != "" {
		return fmt.Sprintf("dispatch: %s: %s\n%s", e.Kind, e.Message, e.RemoteTraceback)
	}
	return fmt.Sprintf("dispatch: %s: %s", e.Kind, e.Message)
}

func newRemoteError(f *models.FailureResult) *RemoteError {
	return &RemoteError{
		Kind:            f.ErrorKind,
		Message:         f.Message,
		RemoteTraceback: f.RemoteTraceback,
		CapturedStdout:  f.CapturedStdout,
		CapturedStderr:  f.CapturedStderr,
	}
}
