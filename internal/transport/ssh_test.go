package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestAuthMethodsFor_Password(t *testing.T) {
	methods, err := authMethodsFor(models.CredentialBundle{Password: "hunter2"})
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestAuthMethodsFor_NoCredentialIsError(t *testing.T) {
	_, err := authMethodsFor(models.CredentialBundle{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
}

func TestAuthMethodsFor_BadKeyBytes(t *testing.T) {
	_, err := authMethodsFor(models.CredentialBundle{PrivateKeyBytes: []byte("not a key")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
}
