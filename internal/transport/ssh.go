package transport

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/stlpine/clustergo/pkg/models"
)

// ExecResult is the outcome of a single remote command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Transport is the shared SSH/SFTP access point used by the batch, SSH, and
// provisioned-VM backend adapters. It owns a Pool and applies exponential
// backoff around connection establishment.
type Transport struct {
	pool    *Pool
	backoff BackoffPolicy
}

// NewTransport builds a Transport over a freshly created Pool.
func NewTransport(opts PoolOptions, backoff BackoffPolicy) *Transport {
	return &Transport{pool: NewPool(opts), backoff: backoff}
}

// Exec runs cmd on target, authenticating with cred, retrying connection
// establishment (not command execution) per t.backoff.
func (t *Transport) Exec(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle, cmd string) (ExecResult, error) {
	client, err := t.connectWithBackoff(ctx, target, cred)
	if err != nil {
		return ExecResult{}, err
	}
	defer t.pool.Release(target)

	session, err := client.NewSession()
	if err != nil {
		t.pool.Invalidate(target)
		return ExecResult{}, fmt.Errorf("%w: new session: %v", ErrExecFailed, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return ExecResult{}, fmt.Errorf("%w: %v", ErrExecFailed, ctx.Err())
	case runErr := <-done:
		result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if runErr == nil {
			return result, nil
		}
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		t.pool.Invalidate(target)
		return result, fmt.Errorf("%w: %v", ErrExecFailed, runErr)
	}
}

func (t *Transport) connectWithBackoff(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle) (*ssh.Client, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		client, err := t.pool.Get(ctx, target, cred)
		if err == nil {
			return client, nil
		}
		lastErr = err

		wait, more := t.backoff.Next(attempt)
		if !more {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-afterCtx(ctx, wait):
		}
	}
	return nil, lastErr
}

// Close releases all pooled resources.
func (t *Transport) Close() error {
	return t.pool.Close()
}

func authMethodsFor(cred models.CredentialBundle) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if len(cred.PrivateKeyBytes) > 0 {
		var signer ssh.Signer
		var err error
		if cred.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(cred.PrivateKeyBytes, []byte(cred.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(cred.PrivateKeyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse private key: %v", ErrConnectFailed, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cred.Password != "" {
		methods = append(methods, ssh.Password(cred.Password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no usable credential (need private key or password)", ErrConnectFailed)
	}
	return methods, nil
}
