package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestKeyFor_DefaultsPort22(t *testing.T) {
	target := models.ClusterTarget{Host: "cluster.example.edu", Username: "alice"}
	k := keyFor(target)
	assert.Equal(t, 22, k.port)
	assert.Equal(t, "cluster.example.edu", k.host)
	assert.Equal(t, "alice", k.user)
}

func TestPool_GetFailsFastOnUnreachableHost(t *testing.T) {
	pool := NewPool(PoolOptions{DialTimeout: 200 * time.Millisecond, IdleTimeout: time.Minute})
	defer pool.Close()

	target := models.ClusterTarget{Host: "127.0.0.1", Port: 1, Username: "nobody"}
	cred := models.CredentialBundle{Password: "x"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := pool.Get(ctx, target, cred)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
}

func TestPool_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	pool := NewPool(PoolOptions{DialTimeout: 100 * time.Millisecond, IdleTimeout: time.Minute})
	defer pool.Close()

	target := models.ClusterTarget{Host: "127.0.0.1", Port: 1, Username: "nobody"}
	cred := models.CredentialBundle{Password: "x"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 4; i++ {
		_, lastErr = pool.Get(ctx, target, cred)
	}
	require.Error(t, lastErr)
	assert.ErrorIs(t, lastErr, ErrCircuitOpen)
}
