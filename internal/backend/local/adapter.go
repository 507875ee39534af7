// Package local implements backend.Adapter by running a bundle's bootstrap
// inside a sandboxed Docker container on the same host the executor runs
// on, bind-mounting a staging directory instead of going over SSH. This is
// the container-isolated counterpart to pkg/dispatch's in-process local
// fast path: a caller that wants a local job to still go through the
// Executor Core (for polling, cancellation, and persistence) uses
// KindLocalSandboxed, which routes here instead. Adapted from the teacher's internal/docker container
// runtime, generalized from a single compile-and-exit container to a
// bundle's long-running bootstrap process.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"
)

const (
	// Resource limits, carried over from the teacher's compilation sandbox.
	defaultMemory     = 512 * 1024 * 1024
	defaultMemorySwap = 512 * 1024 * 1024
	defaultCPUQuota   = 100000 // 1 CPU
	defaultPidsLimit  = 256

	defaultImage = "golang:1.23"
)

// Adapter runs a bundle inside a Docker container, treating backend_id as
// the container ID and remote_dir as a host-local staging directory that is
// bind-mounted into the container at /workspace, so result/log files are
// readable directly off the host filesystem without a container-copy step.
type Adapter struct {
	cli        *client.Client
	stagingDir string
	tracker    *backend.SubmissionTracker
}

// New wraps a Docker client (client.FromEnv is the usual construction) and
// a host directory bundles are staged under.
func New(cli *client.Client, stagingDir string) *Adapter {
	return &Adapter{cli: cli, stagingDir: stagingDir, tracker: backend.NewSubmissionTracker()}
}

var _ backend.Adapter = (*Adapter)(nil)

func (a *Adapter) Submit(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error) {
	remoteDir := filepath.Join(a.stagingDir, bundle.ID)
	if err := os.MkdirAll(remoteDir, 0o755); err != nil {
		return "", "", fmt.Errorf("local: create staging dir: %w", err)
	}

	image := spec.Target.DefaultContainerImage
	if image == "" {
		image = defaultImage
	}
	if err := a.ensureImageExists(ctx, image); err != nil {
		return "", "", fmt.Errorf("local: ensure image: %w", err)
	}

	containerID, err := a.createSandbox(ctx, image, bundle, remoteDir, spec.Target.EnvironmentOverrides)
	if err != nil {
		return "", "", fmt.Errorf("local: create sandbox: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", "", fmt.Errorf("local: start sandbox: %w", err)
	}

	a.tracker.Put(containerID, backend.TrackedSubmission{
		Target:       spec.Target,
		RemoteDir:    remoteDir,
		FunctionName: bundle.FunctionName,
	})
	return containerID, remoteDir, nil
}

func (a *Adapter) createSandbox(ctx context.Context, image string, bundle models.BundleRef, remoteDir string, envOverrides map[string]string) (string, error) {
	launch := fmt.Sprintf(
		"mkdir -p /workspace && cd /workspace && tar --zstd -xf /staging/%s && cd bootstrap && "+
			"go run . > /workspace/stdout.log 2> /workspace/stderr.log",
		filepath.Base(bundle.ArchivePath),
	)

	env := make([]string, 0, len(envOverrides))
	for k, v := range envOverrides {
		env = append(env, k+"="+v)
	}

	containerConfig := &container.Config{
		Image:           image,
		Cmd:             []string{"/bin/sh", "-c", launch},
		WorkingDir:      "/workspace",
		Env:             env,
		NetworkDisabled: false, // go run needs module resolution unless fully vendored
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:     defaultMemory,
			MemorySwap: defaultMemorySwap,
			CPUQuota:   defaultCPUQuota,
			PidsLimit:  func() *int64 { v := int64(defaultPidsLimit); return &v }(),
		},
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: filepath.Dir(bundle.ArchivePath), Target: "/staging", ReadOnly: true},
			{Type: mount.TypeBind, Source: remoteDir, Target: "/workspace"},
		},
	}

	resp, err := a.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ensureImageExists requires the sandbox image to already be present
// locally; this adapter never pulls on the caller's behalf, mirroring the
// teacher's ImageExists check gating compilation on a pre-provisioned image.
func (a *Adapter) ensureImageExists(ctx context.Context, image string) error {
	if _, err := a.cli.ImageInspect(ctx, image); err != nil {
		if errdefs.IsNotFound(err) { //nolint:staticcheck // SA1019: errdefs.IsNotFound is correct for this client version
			return fmt.Errorf("image %q not present locally; pull it before dispatching", image)
		}
		return err
	}
	return nil
}

func (a *Adapter) Probe(ctx context.Context, backendID string) (models.JobState, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return models.StateUnknown, fmt.Errorf("local: unknown backend id %q", backendID)
	}

	info, err := a.cli.ContainerInspect(ctx, backendID)
	if err != nil {
		return models.StateUnknown, fmt.Errorf("local: inspect sandbox: %w", err)
	}

	if info.State.Running {
		return models.StateRunning, nil
	}

	locs := resultLocationsFor(rec)
	if fileNonEmpty(locs.SuccessPath) {
		return models.StateCompleted, nil
	}
	if fileNonEmpty(locs.FailurePath) {
		return models.StateFailed, nil
	}
	if info.State.ExitCode != 0 {
		return models.StateFailed, nil
	}
	return models.StateUnknown, nil
}

func (a *Adapter) Cancel(ctx context.Context, backendID string) error {
	if _, ok := a.tracker.Get(backendID); !ok {
		return fmt.Errorf("local: unknown backend id %q", backendID)
	}
	return a.cli.ContainerKill(ctx, backendID, "SIGTERM")
}

func (a *Adapter) StreamErrorContext(_ context.Context, backendID string) (backend.StreamTail, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.StreamTail{}, fmt.Errorf("local: unknown backend id %q", backendID)
	}
	return backend.StreamTail{
		Stdout: tailFile(filepath.Join(rec.RemoteDir, "stdout.log"), 4096),
		Stderr: tailFile(filepath.Join(rec.RemoteDir, "stderr.log"), 4096),
	}, nil
}

func (a *Adapter) ResultLocations(_ context.Context, backendID string, _ string) (backend.ResultLocations, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.ResultLocations{}, fmt.Errorf("local: unknown backend id %q", backendID)
	}
	return resultLocationsFor(rec), nil
}

func (a *Adapter) FetchResultFile(_ context.Context, backendID string, path string) ([]byte, error) {
	if _, ok := a.tracker.Get(backendID); !ok {
		return nil, fmt.Errorf("local: unknown backend id %q", backendID)
	}
	return os.ReadFile(path)
}

func (a *Adapter) Cleanup(ctx context.Context, remoteDir string) error {
	rec, ok := a.tracker.GetByRemoteDir(remoteDir)
	if !ok {
		return fmt.Errorf("local: cleanup: no tracked submission for remote dir %q", remoteDir)
	}
	_ = a.cli.ContainerRemove(ctx, rec.BackendID, container.RemoveOptions{Force: true, RemoveVolumes: true}) //nolint:errcheck // best effort
	a.tracker.Delete(rec.BackendID)
	return os.RemoveAll(remoteDir)
}

func (a *Adapter) PreferredPollInterval() (time.Duration, bool) {
	return time.Second, true
}

func resultLocationsFor(rec backend.TrackedSubmission) backend.ResultLocations {
	return backend.ResultLocations{
		SuccessPath: fmt.Sprintf("%s/result_%s_%s.json", rec.RemoteDir, rec.FunctionName, rec.BackendID),
		FailurePath: fmt.Sprintf("%s/error_%s_%s.json", rec.RemoteDir, rec.FunctionName, rec.BackendID),
	}
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func tailFile(path string, maxBytes int64) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if int64(len(data)) > maxBytes {
		data = data[len(data)-int(maxBytes):]
	}
	return strings.TrimSpace(string(data))
}
