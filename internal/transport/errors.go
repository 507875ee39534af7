// Package transport provides pooled, circuit-broken SSH exec and SFTP
// access to remote execution targets. It is the sole network boundary used
// by the batch-scheduler, SSH, and provisioned-VM backend adapters; the
// Kubernetes adapter talks to the API server directly instead.
package transport

import "errors"

// Sentinel errors forming the transport slice of spec §7's error taxonomy.
var (
	// ErrConnectFailed wraps any failure to establish the underlying SSH
	// connection (DNS, TCP, handshake, auth).
	ErrConnectFailed = errors.New("transport: connect failed")

	// ErrCircuitOpen is returned immediately, without attempting a
	// connection, while a target's circuit breaker is open.
	ErrCircuitOpen = errors.New("transport: circuit open")

	// ErrExecFailed wraps a failure to start or complete a remote command
	// (distinct from the command itself exiting non-zero, which is
	// reported via ExecResult.ExitCode).
	ErrExecFailed = errors.New("transport: exec failed")

	// ErrTransferFailed wraps an SFTP upload/download/stat failure.
	ErrTransferFailed = errors.New("transport: transfer failed")
)
