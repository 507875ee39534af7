package provisionedvm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/internal/credentials"
	"github.com/stlpine/clustergo/pkg/models"
)

type fakeProvisioner struct {
	endpoint      models.ProvisionedEndpoint
	provisionErr  error
	teardownCalls []string
	teardownErr   error
}

func (f *fakeProvisioner) Provision(context.Context) (models.ProvisionedEndpoint, error) {
	if f.provisionErr != nil {
		return models.ProvisionedEndpoint{}, f.provisionErr
	}
	return f.endpoint, nil
}

func (f *fakeProvisioner) Teardown(_ context.Context, token string) error {
	f.teardownCalls = append(f.teardownCalls, token)
	return f.teardownErr
}

var _ models.ProvisionedTarget = (*fakeProvisioner)(nil)

type fakeDelegate struct {
	submitErr   error
	cleanupErr  error
	backendID   string
	remoteDir   string
	probeCalled bool
}

func (f *fakeDelegate) Submit(context.Context, models.BundleRef, models.JobSpec) (string, string, error) {
	if f.submitErr != nil {
		return "", "", f.submitErr
	}
	return f.backendID, f.remoteDir, nil
}
func (f *fakeDelegate) Probe(context.Context, string) (models.JobState, error) {
	f.probeCalled = true
	return models.StateRunning, nil
}
func (f *fakeDelegate) Cancel(context.Context, string) error { return nil }
func (f *fakeDelegate) StreamErrorContext(context.Context, string) (backend.StreamTail, error) {
	return backend.StreamTail{}, nil
}
func (f *fakeDelegate) ResultLocations(context.Context, string, string) (backend.ResultLocations, error) {
	return backend.ResultLocations{}, nil
}
func (f *fakeDelegate) FetchResultFile(context.Context, string, string) ([]byte, error) {
	return nil, nil
}
func (f *fakeDelegate) Cleanup(context.Context, string) error { return f.cleanupErr }
func (f *fakeDelegate) PreferredPollInterval() (interval time.Duration, ok bool) {
	return 0, false
}

var _ backend.Adapter = (*fakeDelegate)(nil)

func newTestAdapter(provisioner models.ProvisionedTarget, delegate *fakeDelegate) *Adapter {
	return newWithDelegateFactory(provisioner, func(*credentials.Resolver) backend.Adapter {
		return delegate
	})
}

func TestSubmit_ProvisionsAndDelegatesThenTracksSession(t *testing.T) {
	provisioner := &fakeProvisioner{endpoint: models.ProvisionedEndpoint{Host: "10.0.0.5", TeardownToken: "tok-1"}}
	delegate := &fakeDelegate{backendID: "pid-1", remoteDir: "/tmp/clustergo/x"}
	a := newTestAdapter(provisioner, delegate)

	backendID, remoteDir, err := a.Submit(context.Background(), models.BundleRef{}, models.JobSpec{})
	require.NoError(t, err)
	assert.Equal(t, "pid-1", backendID)
	assert.Equal(t, "/tmp/clustergo/x", remoteDir)

	_, err = a.Probe(context.Background(), backendID)
	require.NoError(t, err)
	assert.True(t, delegate.probeCalled)
}

func TestSubmit_ProvisionFailureNeverDelegates(t *testing.T) {
	provisioner := &fakeProvisioner{provisionErr: errors.New("quota exceeded")}
	delegate := &fakeDelegate{backendID: "pid-1", remoteDir: "/tmp/x"}
	a := newTestAdapter(provisioner, delegate)

	_, _, err := a.Submit(context.Background(), models.BundleRef{}, models.JobSpec{})
	assert.Error(t, err)
}

func TestSubmit_DelegateFailureTearsDownEndpoint(t *testing.T) {
	provisioner := &fakeProvisioner{endpoint: models.ProvisionedEndpoint{TeardownToken: "tok-2"}}
	delegate := &fakeDelegate{submitErr: errors.New("stage failed")}
	a := newTestAdapter(provisioner, delegate)

	_, _, err := a.Submit(context.Background(), models.BundleRef{}, models.JobSpec{})
	assert.Error(t, err)
	assert.Equal(t, []string{"tok-2"}, provisioner.teardownCalls)
}

func TestCleanup_TearsDownEndpointAfterDelegateCleanup(t *testing.T) {
	provisioner := &fakeProvisioner{endpoint: models.ProvisionedEndpoint{TeardownToken: "tok-3"}}
	delegate := &fakeDelegate{backendID: "pid-1", remoteDir: "/tmp/clustergo/x"}
	a := newTestAdapter(provisioner, delegate)

	_, remoteDir, err := a.Submit(context.Background(), models.BundleRef{}, models.JobSpec{})
	require.NoError(t, err)

	require.NoError(t, a.Cleanup(context.Background(), remoteDir))
	assert.Equal(t, []string{"tok-3"}, provisioner.teardownCalls)

	err = a.Cleanup(context.Background(), remoteDir)
	assert.Error(t, err, "a second cleanup of an already-removed session must fail, not silently succeed")
}

func TestCleanup_UnknownRemoteDirReturnsError(t *testing.T) {
	a := newTestAdapter(&fakeProvisioner{}, &fakeDelegate{})
	err := a.Cleanup(context.Background(), "/never/submitted")
	assert.Error(t, err)
}
