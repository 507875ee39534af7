package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sony/gobreaker"

	"github.com/stlpine/clustergo/pkg/models"
)

// connKey identifies a pooled connection by the (host, port, user) triple
// spec §4.2 designates as the pooling identity.
type connKey struct {
	host string
	port int
	user string
}

func keyFor(target models.ClusterTarget) connKey {
	host, port, user := target.Identity()
	if port == 0 {
		port = 22
	}
	return connKey{host: host, port: port, user: user}
}

type pooledConn struct {
	client   *ssh.Client
	lastUsed time.Time
	inUse    int
}

// HostKeyPolicy controls how a new connection verifies the remote host key.
type HostKeyPolicy int

const (
	// HostKeyAcceptAndPin trusts the first key seen for a host and pins it
	// for the lifetime of the pool, rejecting any later mismatch. This is
	// the default, matching how most cluster-dispatch tooling behaves
	// against hosts with no shared known_hosts distribution.
	HostKeyAcceptAndPin HostKeyPolicy = iota

	// HostKeyStrict requires the key to already be present in a supplied
	// known_hosts callback; connections to unknown hosts are rejected.
	HostKeyStrict
)

// Pool maintains one SSH connection per (host, port, user), each guarded by
// its own circuit breaker, with idle connections closed in the background.
type Pool struct {
	mu       sync.Mutex
	conns    map[connKey]*pooledConn
	breakers map[connKey]*gobreaker.CircuitBreaker

	pinnedKeys map[string]ssh.PublicKey

	dialTimeout time.Duration
	idleTimeout time.Duration
	hostKeyFunc ssh.HostKeyCallback
	policy      HostKeyPolicy

	closeCh chan struct{}
	closeWg sync.WaitGroup
}

// PoolOptions configures a Pool. Zero values fall back to sane defaults.
type PoolOptions struct {
	DialTimeout time.Duration
	IdleTimeout time.Duration
	Policy      HostKeyPolicy
	// HostKeyCallback is used verbatim when Policy == HostKeyStrict.
	HostKeyCallback ssh.HostKeyCallback
}

// NewPool constructs a connection pool and starts its idle-connection
// reaper.
func NewPool(opts PoolOptions) *Pool {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 15 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 5 * time.Minute
	}

	p := &Pool{
		conns:       make(map[connKey]*pooledConn),
		breakers:    make(map[connKey]*gobreaker.CircuitBreaker),
		pinnedKeys:  make(map[string]ssh.PublicKey),
		dialTimeout: opts.DialTimeout,
		idleTimeout: opts.IdleTimeout,
		hostKeyFunc: opts.HostKeyCallback,
		policy:      opts.Policy,
		closeCh:     make(chan struct{}),
	}

	p.closeWg.Add(1)
	go p.reapIdle()

	return p
}

func (p *Pool) breakerFor(key connKey) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("%s@%s:%d", key.user, key.host, key.port),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("transport: circuit %s changed %s -> %s", name, from, to)
		},
	})
	p.breakers[key] = b
	return b
}

// Get returns a live SSH client for target, dialing a new connection if
// none is pooled (or the pooled one is dead), gated by the target's circuit
// breaker.
func (p *Pool) Get(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle) (*ssh.Client, error) {
	key := keyFor(target)
	breaker := p.breakerFor(key)

	result, err := breaker.Execute(func() (interface{}, error) {
		return p.getOrDial(ctx, key, target, cred)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %s@%s:%d", ErrCircuitOpen, key.user, key.host, key.port)
		}
		return nil, err
	}
	return result.(*ssh.Client), nil
}

func (p *Pool) getOrDial(ctx context.Context, key connKey, target models.ClusterTarget, cred models.CredentialBundle) (*ssh.Client, error) {
	p.mu.Lock()
	if pc, ok := p.conns[key]; ok {
		if isAlive(pc.client) {
			pc.lastUsed = time.Now()
			pc.inUse++
			p.mu.Unlock()
			return pc.client, nil
		}
		delete(p.conns, key)
	}
	p.mu.Unlock()

	client, err := p.dial(ctx, key, target, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	p.mu.Lock()
	p.conns[key] = &pooledConn{client: client, lastUsed: time.Now(), inUse: 1}
	p.mu.Unlock()

	return client, nil
}

func (p *Pool) dial(ctx context.Context, key connKey, target models.ClusterTarget, cred models.CredentialBundle) (*ssh.Client, error) {
	authMethods, err := authMethodsFor(cred)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            key.user,
		Auth:            authMethods,
		Timeout:         p.dialTimeout,
		HostKeyCallback: p.hostKeyCallback(key),
	}

	addr := fmt.Sprintf("%s:%d", key.host, key.port)

	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (p *Pool) hostKeyCallback(key connKey) ssh.HostKeyCallback {
	if p.policy == HostKeyStrict {
		if p.hostKeyFunc != nil {
			return p.hostKeyFunc
		}
		return func(hostname string, _ net.Addr, _ ssh.PublicKey) error {
			return fmt.Errorf("transport: strict host-key policy has no known key for %s", hostname)
		}
	}
	return func(hostname string, remote net.Addr, pk ssh.PublicKey) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if pinned, ok := p.pinnedKeys[key.host]; ok {
			if string(pinned.Marshal()) != string(pk.Marshal()) {
				return fmt.Errorf("transport: host key for %s changed since first connection", key.host)
			}
			return nil
		}
		p.pinnedKeys[key.host] = pk
		return nil
	}
}

// Release marks the connection for key as idle again (decrementing its
// in-use count); it does not close anything, that's the reaper's job.
func (p *Pool) Release(target models.ClusterTarget) {
	key := keyFor(target)
	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[key]; ok {
		pc.inUse--
		if pc.inUse < 0 {
			pc.inUse = 0
		}
		pc.lastUsed = time.Now()
	}
}

// Invalidate drops and closes the pooled connection for target, forcing the
// next Get to dial fresh; callers do this after an exec/transfer failure
// that looks connection-related.
func (p *Pool) Invalidate(target models.ClusterTarget) {
	key := keyFor(target)
	p.mu.Lock()
	pc, ok := p.conns[key]
	if ok {
		delete(p.conns, key)
	}
	p.mu.Unlock()
	if ok {
		_ = pc.client.Close()
	}
}

func (p *Pool) reapIdle() {
	defer p.closeWg.Done()
	ticker := time.NewTicker(p.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCh:
			return
		case <-ticker.C:
			p.closeExpired()
		}
	}
}

func (p *Pool) closeExpired() {
	now := time.Now()
	p.mu.Lock()
	var stale []*pooledConn
	for key, pc := range p.conns {
		if pc.inUse == 0 && now.Sub(pc.lastUsed) > p.idleTimeout {
			stale = append(stale, pc)
			delete(p.conns, key)
		}
	}
	p.mu.Unlock()

	for _, pc := range stale {
		_ = pc.client.Close()
	}
}

// Close shuts down the reaper and every pooled connection.
func (p *Pool) Close() error {
	close(p.closeCh)
	p.closeWg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for key, pc := range p.conns {
		_ = pc.client.Close()
		delete(p.conns, key)
	}
	return nil
}

func isAlive(client *ssh.Client) bool {
	_, _, err := client.SendRequest("keepalive@clustergo", true, nil)
	return err == nil
}
