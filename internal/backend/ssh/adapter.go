// Package ssh implements backend.Adapter by launching a bundle's bootstrap
// as a plain background process over a single SSH connection: no queueing,
// no resource enforcement beyond what the OS provides.
package ssh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/internal/credentials"
	"github.com/stlpine/clustergo/internal/transport"
	"github.com/stlpine/clustergo/pkg/models"
)

// Adapter runs a bundle's bootstrap as a remote process, treating
// backend_id as the remote PID (spec §4.7).
type Adapter struct {
	transport *transport.Transport
	resolver  *credentials.Resolver
	tracker   *backend.SubmissionTracker
}

func New(t *transport.Transport, resolver *credentials.Resolver) *Adapter {
	return &Adapter{transport: t, resolver: resolver, tracker: backend.NewSubmissionTracker()}
}

var _ backend.Adapter = (*Adapter)(nil)

func (a *Adapter) Submit(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error) {
	cred, err := a.resolver.Resolve(ctx, spec.Target)
	if err != nil {
		return "", "", fmt.Errorf("ssh: resolve credentials: %w", err)
	}
	defer cred.Zero()

	remoteDir := remoteDirFor(spec.Target, bundle)

	archiveRemote := remoteDir + "/bundle.tar.zst"
	if err := a.transport.Upload(ctx, spec.Target, cred, bundle.ArchivePath, archiveRemote); err != nil {
		return "", "", fmt.Errorf("ssh: upload bundle: %w", err)
	}

	unpackCmd := fmt.Sprintf("mkdir -p %s && cd %s && tar --zstd -xf bundle.tar.zst",
		shellQuote(remoteDir), shellQuote(remoteDir))
	if res, err := a.transport.Exec(ctx, spec.Target, cred, unpackCmd); err != nil {
		return "", "", fmt.Errorf("ssh: stage bundle: %w", err)
	} else if res.ExitCode != 0 {
		return "", "", fmt.Errorf("ssh: stage bundle exited %d: %s", res.ExitCode, res.Stderr)
	}

	launch, err := a.transport.Exec(ctx, spec.Target, cred, launchCommand(remoteDir))
	if err != nil {
		return "", "", fmt.Errorf("ssh: launch bootstrap: %w", err)
	}
	pid := strings.TrimSpace(launch.Stdout)
	if _, err := strconv.Atoi(pid); err != nil {
		return "", "", fmt.Errorf("ssh: launch bootstrap: no pid reported (stderr: %s)", launch.Stderr)
	}

	a.tracker.Put(pid, backend.TrackedSubmission{
		Target:       spec.Target,
		RemoteDir:    remoteDir,
		FunctionName: bundle.FunctionName,
	})
	return pid, remoteDir, nil
}

func (a *Adapter) Probe(ctx context.Context, backendID string) (models.JobState, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return models.StateUnknown, fmt.Errorf("ssh: unknown backend id %q", backendID)
	}

	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return models.StateUnknown, fmt.Errorf("ssh: resolve credentials: %w", err)
	}
	defer cred.Zero()

	aliveCmd := fmt.Sprintf("kill -0 %s 2>/dev/null && echo ALIVE || echo DEAD", shellQuote(backendID))
	res, err := a.transport.Exec(ctx, rec.Target, cred, aliveCmd)
	if err != nil {
		return models.StateUnknown, fmt.Errorf("ssh: liveness probe: %w", err)
	}
	if strings.Contains(res.Stdout, "ALIVE") {
		return models.StateRunning, nil
	}

	// Process has exited; consult the sentinel files the bootstrap writes
	// to tell completed from failed from never-started.
	locs := resultLocationsFor(rec)
	if size, exists, err := a.transport.Stat(ctx, rec.Target, cred, locs.SuccessPath); err == nil && exists && size > 0 {
		return models.StateCompleted, nil
	}
	if size, exists, err := a.transport.Stat(ctx, rec.Target, cred, locs.FailurePath); err == nil && exists && size > 0 {
		return models.StateFailed, nil
	}
	return models.StateUnknown, nil
}

func (a *Adapter) Cancel(ctx context.Context, backendID string) error {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return fmt.Errorf("ssh: unknown backend id %q", backendID)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return fmt.Errorf("ssh: resolve credentials: %w", err)
	}
	defer cred.Zero()

	_, err = a.transport.Exec(ctx, rec.Target, cred, fmt.Sprintf("kill -TERM %s 2>/dev/null", shellQuote(backendID)))
	return err
}

func (a *Adapter) StreamErrorContext(ctx context.Context, backendID string) (backend.StreamTail, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.StreamTail{}, fmt.Errorf("ssh: unknown backend id %q", backendID)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return backend.StreamTail{}, fmt.Errorf("ssh: resolve credentials: %w", err)
	}
	defer cred.Zero()

	tailCmd := fmt.Sprintf("tail -c 4096 %s/stdout.log 2>/dev/null; echo __STDERR__; tail -c 4096 %s/stderr.log 2>/dev/null",
		shellQuote(rec.RemoteDir), shellQuote(rec.RemoteDir))
	res, err := a.transport.Exec(ctx, rec.Target, cred, tailCmd)
	if err != nil {
		return backend.StreamTail{}, fmt.Errorf("ssh: stream error context: %w", err)
	}
	stdout, stderr, _ := strings.Cut(res.Stdout, "__STDERR__")
	return backend.StreamTail{Stdout: strings.TrimSpace(stdout), Stderr: strings.TrimSpace(stderr)}, nil
}

func (a *Adapter) ResultLocations(_ context.Context, backendID string, _ string) (backend.ResultLocations, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.ResultLocations{}, fmt.Errorf("ssh: unknown backend id %q", backendID)
	}
	return resultLocationsFor(rec), nil
}

func (a *Adapter) FetchResultFile(ctx context.Context, backendID string, path string) ([]byte, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return nil, fmt.Errorf("ssh: unknown backend id %q", backendID)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return nil, fmt.Errorf("ssh: resolve credentials: %w", err)
	}
	defer cred.Zero()
	return a.transport.ReadFile(ctx, rec.Target, cred, path)
}

func resultLocationsFor(rec backend.TrackedSubmission) backend.ResultLocations {
	return backend.ResultLocations{
		SuccessPath: fmt.Sprintf("%s/result_%s_%s.json", rec.RemoteDir, rec.FunctionName, rec.BackendID),
		FailurePath: fmt.Sprintf("%s/error_%s_%s.json", rec.RemoteDir, rec.FunctionName, rec.BackendID),
	}
}

func (a *Adapter) Cleanup(ctx context.Context, remoteDir string) error {
	rec, ok := a.tracker.GetByRemoteDir(remoteDir)
	if !ok {
		return fmt.Errorf("ssh: cleanup: no tracked submission for remote dir %q", remoteDir)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return fmt.Errorf("ssh: resolve credentials: %w", err)
	}
	defer cred.Zero()

	_, err = a.transport.Exec(ctx, rec.Target, cred, fmt.Sprintf("rm -rf %s", shellQuote(remoteDir)))
	a.tracker.Delete(rec.BackendID)
	return err
}

func (a *Adapter) PreferredPollInterval() (interval time.Duration, ok bool) {
	return 0, false
}

func remoteDirFor(target models.ClusterTarget, bundle models.BundleRef) string {
	base := target.RemoteWorkDir
	if base == "" {
		base = "/tmp/clustergo"
	}
	return strings.TrimRight(base, "/") + "/" + bundle.ID
}

func launchCommand(remoteDir string) string {
	return fmt.Sprintf(
		"cd %s/bootstrap && nohup go run . > %s/stdout.log 2> %s/stderr.log < /dev/null & echo $!",
		shellQuote(remoteDir), shellQuote(remoteDir), shellQuote(remoteDir),
	)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
