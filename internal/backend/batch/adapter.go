package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/internal/credentials"
	"github.com/stlpine/clustergo/internal/transport"
	"github.com/stlpine/clustergo/pkg/models"
)

// Adapter submits to one of the SLURM/PBS/SGE/LSF schedulers, selected per
// call by spec.Target.Kind (spec §4.7).
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
	d, err := dialectFor(spec.Target.Kind)
	if err != nil {
		return "", "", err
	}

	cred, err := a.resolver.Resolve(ctx, spec.Target)
	if err != nil {
		return "", "", fmt.Errorf("batch: resolve credentials: %w", err)
	}
	defer cred.Zero()

	remoteDir := remoteDirFor(spec.Target, bundle)
	archiveRemote := remoteDir + "/bundle.tar.zst"
	if err := a.transport.Upload(ctx, spec.Target, cred, bundle.ArchivePath, archiveRemote); err != nil {
		return "", "", fmt.Errorf("batch: upload bundle: %w", err)
	}

	unpackCmd := fmt.Sprintf("mkdir -p %s && cd %s && tar --zstd -xf bundle.tar.zst",
		shellQuote(remoteDir), shellQuote(remoteDir))
	if res, err := a.transport.Exec(ctx, spec.Target, cred, unpackCmd); err != nil {
		return "", "", fmt.Errorf("batch: stage bundle: %w", err)
	} else if res.ExitCode != 0 {
		return "", "", fmt.Errorf("batch: stage bundle exited %d: %s", res.ExitCode, res.Stderr)
	}

	script := launchScript(d, spec, remoteDir)
	scriptPath := remoteDir + "/launch.sh"
	writeScriptCmd := fmt.Sprintf("cat > %s <<'CLUSTERGO_SCRIPT_EOF'\n%s\nCLUSTERGO_SCRIPT_EOF", shellQuote(scriptPath), script)
	if res, err := a.transport.Exec(ctx, spec.Target, cred, writeScriptCmd); err != nil {
		return "", "", fmt.Errorf("batch: write launch script: %w", err)
	} else if res.ExitCode != 0 {
		return "", "", fmt.Errorf("batch: write launch script exited %d: %s", res.ExitCode, res.Stderr)
	}

	submitCmd := fmt.Sprintf("cd %s && %s %s", shellQuote(remoteDir), d.submitCmd, shellQuote(scriptPath))
	res, err := a.transport.Exec(ctx, spec.Target, cred, submitCmd)
	if err != nil {
		return "", "", fmt.Errorf("batch: submit: %w", err)
	}
	if res.ExitCode != 0 {
		return "", "", fmt.Errorf("batch: submit exited %d: %s", res.ExitCode, res.Stderr)
	}

	match := d.submitIDPattern.FindStringSubmatch(res.Stdout)
	if match == nil {
		return "", "", fmt.Errorf("batch: could not parse job id from %s submission output: %q", d.name, res.Stdout)
	}
	jobID := match[len(match)-1]

	a.tracker.Put(jobID, backend.TrackedSubmission{
		Target:       spec.Target,
		RemoteDir:    remoteDir,
		FunctionName: bundle.FunctionName,
	})
	return jobID, remoteDir, nil
}

func (a *Adapter) Probe(ctx context.Context, backendID string) (models.JobState, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return models.StateUnknown, fmt.Errorf("batch: unknown backend id %q", backendID)
	}
	d, err := dialectFor(rec.Target.Kind)
	if err != nil {
		return models.StateUnknown, err
	}

	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return models.StateUnknown, fmt.Errorf("batch: resolve credentials: %w", err)
	}
	defer cred.Zero()

	queueRes, err := a.transport.Exec(ctx, rec.Target, cred, d.queueStateCmd(backendID))
	if err == nil && strings.Contains(queueRes.Stdout, backendID) {
		return models.StateRunning, nil
	}

	// Left the live queue; consult accounting history to tell
	// completed/failed from a job the accounting backend hasn't indexed
	// yet (reported as unknown so the executor keeps polling).
	histRes, err := a.transport.Exec(ctx, rec.Target, cred, d.historyCmd(backendID))
	if err != nil {
		return models.StateUnknown, fmt.Errorf("batch: history probe: %w", err)
	}
	if state, ok := d.historyParse(histRes.Stdout); ok {
		return state, nil
	}
	return models.StateUnknown, nil
}

func (a *Adapter) Cancel(ctx context.Context, backendID string) error {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return fmt.Errorf("batch: unknown backend id %q", backendID)
	}
	d, err := dialectFor(rec.Target.Kind)
	if err != nil {
		return err
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return fmt.Errorf("batch: resolve credentials: %w", err)
	}
	defer cred.Zero()

	_, err = a.transport.Exec(ctx, rec.Target, cred, d.cancelCmd(backendID))
	return err
}

func (a *Adapter) StreamErrorContext(ctx context.Context, backendID string) (backend.StreamTail, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.StreamTail{}, fmt.Errorf("batch: unknown backend id %q", backendID)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return backend.StreamTail{}, fmt.Errorf("batch: resolve credentials: %w", err)
	}
	defer cred.Zero()

	tailCmd := fmt.Sprintf("tail -c 4096 %s/stdout.log 2>/dev/null; echo __STDERR__; tail -c 4096 %s/stderr.log 2>/dev/null",
		shellQuote(rec.RemoteDir), shellQuote(rec.RemoteDir))
	res, err := a.transport.Exec(ctx, rec.Target, cred, tailCmd)
	if err != nil {
		return backend.StreamTail{}, fmt.Errorf("batch: stream error context: %w", err)
	}
	stdout, stderr, _ := strings.Cut(res.Stdout, "__STDERR__")
	return backend.StreamTail{Stdout: strings.TrimSpace(stdout), Stderr: strings.TrimSpace(stderr)}, nil
}

func (a *Adapter) ResultLocations(_ context.Context, backendID string, _ string) (backend.ResultLocations, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.ResultLocations{}, fmt.Errorf("batch: unknown backend id %q", backendID)
	}
	return backend.ResultLocations{
		SuccessPath: fmt.Sprintf("%s/result_%s_%s.json", rec.RemoteDir, rec.FunctionName, rec.BackendID),
		FailurePath: fmt.Sprintf("%s/error_%s_%s.json", rec.RemoteDir, rec.FunctionName, rec.BackendID),
	}, nil
}

func (a *Adapter) FetchResultFile(ctx context.Context, backendID string, path string) ([]byte, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return nil, fmt.Errorf("batch: unknown backend id %q", backendID)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return nil, fmt.Errorf("batch: resolve credentials: %w", err)
	}
	defer cred.Zero()
	return a.transport.ReadFile(ctx, rec.Target, cred, path)
}

func (a *Adapter) Cleanup(ctx context.Context, remoteDir string) error {
	rec, ok := a.tracker.GetByRemoteDir(remoteDir)
	if !ok {
		return fmt.Errorf("batch: cleanup: no tracked submission for remote dir %q", remoteDir)
	}
	cred, err := a.resolver.Resolve(ctx, rec.Target)
	if err != nil {
		return fmt.Errorf("batch: resolve credentials: %w", err)
	}
	defer cred.Zero()

	_, err = a.transport.Exec(ctx, rec.Target, cred, fmt.Sprintf("rm -rf %s", shellQuote(remoteDir)))
	a.tracker.Delete(rec.BackendID)
	return err
}

func (a *Adapter) PreferredPollInterval() (interval time.Duration, ok bool) {
	return 0, false
}

func launchScript(d dialect, spec models.JobSpec, remoteDir string) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString(directiveBlock(d, spec))
	for _, mod := range spec.Target.ModuleLoads {
		b.WriteString("module load " + mod + "\n")
	}
	for k, v := range spec.Target.EnvironmentOverrides {
		b.WriteString(fmt.Sprintf("export %s=%s\n", k, shellQuote(v)))
	}
	b.WriteString("export ORIGINAL_CWD=$PWD\n")
	b.WriteString("cd " + shellQuote(remoteDir) + "\n")
	b.WriteString("cd bootstrap && go run . > ../stdout.log 2> ../stderr.log\n")
	return b.String()
}

func remoteDirFor(target models.ClusterTarget, bundle models.BundleRef) string {
	base := target.RemoteWorkDir
	if base == "" {
		base = "/tmp/clustergo"
	}
	return strings.TrimRight(base, "/") + "/" + bundle.ID
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
