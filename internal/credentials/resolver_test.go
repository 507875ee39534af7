package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

type fakeSource struct {
	name   string
	bundle models.CredentialBundle
	err    error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Resolve(_ context.Context, _ models.ClusterTarget) (models.CredentialBundle, error) {
	return f.bundle, f.err
}

func TestResolver_FirstNonEmptyWins(t *testing.T) {
	r := NewResolverFromSources(
		fakeSource{name: "empty-1"},
		fakeSource{name: "has-password", bundle: models.CredentialBundle{Password: "hunter2"}},
		fakeSource{name: "never-reached", bundle: models.CredentialBundle{Password: "should-not-see-this"}},
	)

	target := models.ClusterTarget{Kind: models.KindSSH, Host: "cluster.example.edu"}
	bundle, err := r.Resolve(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", bundle.Password)
	assert.Equal(t, "has-password", bundle.Source)
}

func TestResolver_AllEmptyNonLocalTarget(t *testing.T) {
	r := NewResolverFromSources(fakeSource{name: "empty"})
	target := models.ClusterTarget{Kind: models.KindSlurm, Host: "cluster.example.edu"}

	_, err := r.Resolve(context.Background(), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

func TestResolver_AllEmptyLocalTargetIsFine(t *testing.T) {
	r := NewResolverFromSources(fakeSource{name: "empty"})
	target := models.ClusterTarget{Kind: models.KindLocal}

	bundle, err := r.Resolve(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}

func TestResolver_SourceErrorHaltsChain(t *testing.T) {
	r := NewResolverFromSources(
		fakeSource{name: "broken", err: ErrPermissionsTooOpen},
		fakeSource{name: "never-reached", bundle: models.CredentialBundle{Password: "x"}},
	)

	target := models.ClusterTarget{Kind: models.KindSSH, Host: "cluster.example.edu"}
	_, err := r.Resolve(context.Background(), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionsTooOpen)
}

func TestCredentialBundle_Zero(t *testing.T) {
	b := models.CredentialBundle{
		Password:             "secret",
		PrivateKeyBytes:      []byte("key-material"),
		PrivateKeyPassphrase: "passphrase",
		BearerToken:          "token",
	}
	b.Zero()
	assert.Empty(t, b.Password)
	assert.Empty(t, b.PrivateKeyBytes)
	assert.Empty(t, b.PrivateKeyPassphrase)
	assert.Empty(t, b.BearerToken)
}
