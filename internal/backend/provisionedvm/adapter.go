// Package provisionedvm adapts a models.ProvisionedTarget collaborator
// (spec §6) into backend.Adapter: Submit provisions a fresh endpoint, then
// delegates staging/launch/probe/cancel/harvest to an ssh.Adapter built
// against that endpoint's credential, and Cleanup tears the endpoint down
// once the ssh-level cleanup has run.
package provisionedvm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/internal/backend/ssh"
	"github.com/stlpine/clustergo/internal/credentials"
	"github.com/stlpine/clustergo/internal/transport"
	"github.com/stlpine/clustergo/pkg/models"
)

// Adapter wraps a per-session backend.Adapter (an ssh.Adapter by default)
// with endpoint lifecycle management.
type Adapter struct {
	provisioner models.ProvisionedTarget

	// newDelegate builds the per-session adapter once the endpoint's host
	// and credential are known. Overridable in tests; defaults to
	// ssh.Adapter over the given transport.
	newDelegate func(resolver *credentials.Resolver) backend.Adapter

	mu            sync.Mutex
	sessions      map[string]*session // backend_id -> session
	sessionsByDir map[string]string   // remote_dir -> backend_id
}

type session struct {
	delegate      backend.Adapter
	teardownToken string
	remoteDir     string
}

func New(t *transport.Transport, provisioner models.ProvisionedTarget) *Adapter {
	return newWithDelegateFactory(provisioner, func(resolver *credentials.Resolver) backend.Adapter {
		return ssh.New(t, resolver)
	})
}

func newWithDelegateFactory(provisioner models.ProvisionedTarget, newDelegate func(*credentials.Resolver) backend.Adapter) *Adapter {
	return &Adapter{
		provisioner:   provisioner,
		newDelegate:   newDelegate,
		sessions:      make(map[string]*session),
		sessionsByDir: make(map[string]string),
	}
}

var _ backend.Adapter = (*Adapter)(nil)

func (a *Adapter) Submit(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error) {
	endpoint, err := a.provisioner.Provision(ctx)
	if err != nil {
		return "", "", fmt.Errorf("provisionedvm: provision endpoint: %w", err)
	}

	resolvedTarget := spec.Target
	resolvedTarget.Host = endpoint.Host
	resolvedTarget.Username = endpoint.Username

	resolver := credentials.NewResolverFromSources(credentials.NewStaticSource(endpoint.Credential))
	delegate := a.newDelegate(resolver)

	delegateSpec := spec
	delegateSpec.Target = resolvedTarget

	backendID, remoteDir, err := delegate.Submit(ctx, bundle, delegateSpec)
	if err != nil {
		_ = a.provisioner.Teardown(ctx, endpoint.TeardownToken)
		return "", "", fmt.Errorf("provisionedvm: %w", err)
	}

	a.mu.Lock()
	a.sessions[backendID] = &session{delegate: delegate, teardownToken: endpoint.TeardownToken, remoteDir: remoteDir}
	a.sessionsByDir[remoteDir] = backendID
	a.mu.Unlock()

	return backendID, remoteDir, nil
}

func (a *Adapter) get(backendID string) (*session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[backendID]
	return s, ok
}

func (a *Adapter) Probe(ctx context.Context, backendID string) (models.JobState, error) {
	s, ok := a.get(backendID)
	if !ok {
		return models.StateUnknown, fmt.Errorf("provisionedvm: unknown backend id %q", backendID)
	}
	return s.delegate.Probe(ctx, backendID)
}

func (a *Adapter) Cancel(ctx context.Context, backendID string) error {
	s, ok := a.get(backendID)
	if !ok {
		return fmt.Errorf("provisionedvm: unknown backend id %q", backendID)
	}
	return s.delegate.Cancel(ctx, backendID)
}

func (a *Adapter) StreamErrorContext(ctx context.Context, backendID string) (backend.StreamTail, error) {
	s, ok := a.get(backendID)
	if !ok {
		return backend.StreamTail{}, fmt.Errorf("provisionedvm: unknown backend id %q", backendID)
	}
	return s.delegate.StreamErrorContext(ctx, backendID)
}

func (a *Adapter) ResultLocations(ctx context.Context, backendID string, remoteDir string) (backend.ResultLocations, error) {
	s, ok := a.get(backendID)
	if !ok {
		return backend.ResultLocations{}, fmt.Errorf("provisionedvm: unknown backend id %q", backendID)
	}
	return s.delegate.ResultLocations(ctx, backendID, remoteDir)
}

func (a *Adapter) FetchResultFile(ctx context.Context, backendID string, path string) ([]byte, error) {
	s, ok := a.get(backendID)
	if !ok {
		return nil, fmt.Errorf("provisionedvm: unknown backend id %q", backendID)
	}
	return s.delegate.FetchResultFile(ctx, backendID, path)
}

// Cleanup removes the remote job directory via the owning ssh.Adapter and
// then tears down the provisioned endpoint entirely, since a provisioned
// endpoint is single-job-scoped and has no life beyond it.
func (a *Adapter) Cleanup(ctx context.Context, remoteDir string) error {
	a.mu.Lock()
	backendID, ok := a.sessionsByDir[remoteDir]
	var s *session
	if ok {
		s = a.sessions[backendID]
	}
	a.mu.Unlock()
	if !ok || s == nil {
		return fmt.Errorf("provisionedvm: cleanup: no tracked submission for remote dir %q", remoteDir)
	}

	cleanupErr := s.delegate.Cleanup(ctx, remoteDir)
	teardownErr := a.provisioner.Teardown(ctx, s.teardownToken)

	a.mu.Lock()
	delete(a.sessions, backendID)
	delete(a.sessionsByDir, remoteDir)
	a.mu.Unlock()

	if cleanupErr != nil {
		return fmt.Errorf("provisionedvm: ssh cleanup: %w", cleanupErr)
	}
	return teardownErr
}

func (a *Adapter) PreferredPollInterval() (interval time.Duration, ok bool) {
	return 0, false
}
