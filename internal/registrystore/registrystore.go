// Package registrystore is the optional Redis-backed persistent job
// registry named in spec §5 as surviving "process restarts" bookkeeping,
// not a workflow engine: it mirrors models.Job records so a restarted
// executor can rehydrate what it was tracking, nothing more. Generalized
// from the teacher's compilation-job Redis store.
package registrystore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/pkg/models"
)

var _ executor.PersistentStore = (*Store)(nil)

// Config holds the connection settings the teacher's RedisConfig carried,
// plus TTL, the one setting this store actually needs beyond what
// redis.Options already covers.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MaxRetries   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// TTL bounds how long a job record survives in Redis after being
	// written; re-Saved (e.g. on every state transition) it keeps sliding
	// forward, so a live job never expires out from under the registry.
	TTL time.Duration
}

// DefaultConfig mirrors the teacher's RedisConfig defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     20,
		MaxRetries:   3,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TTL:          24 * time.Hour,
	}
}

// Store persists models.Job records to Redis, keyed by job id.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New dials Redis and verifies connectivity with a Ping, the same
// connect-then-verify shape the teacher's redis.NewClient used.
func New(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("registrystore: connect to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an already-constructed client, letting tests point
// the store at a miniredis instance instead of a live server.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Save writes the full job record, including its JobSpec (unlike
// models.Job's own `json:"-"` on Spec, which only hides it from the
// status-endpoint view), as a single JSON blob under one Redis key, and
// slides the key's TTL forward.
func (s *Store) Save(ctx context.Context, job models.Job) error {
	payload, err := json.Marshal(struct {
		models.Job
		Spec models.JobSpec `json:"spec"`
	}{job, job.Spec})
	if err != nil {
		return fmt.Errorf("registrystore: encode job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("registrystore: save job %s: %w", job.ID, err)
	}
	return nil
}

// Load retrieves a previously saved job record. ok is false both when the
// key is absent and when it has expired; Load never distinguishes the two.
func (s *Store) Load(ctx context.Context, jobID string) (models.Job, bool, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("registrystore: load job %s: %w", jobID, err)
	}

	var record struct {
		models.Job
		Spec models.JobSpec `json:"spec"`
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.Job{}, false, fmt.Errorf("registrystore: decode job %s: %w", jobID, err)
	}
	job := record.Job
	job.Spec = record.Spec
	return job, true, nil
}

// Delete removes a job record, called once its result has been delivered
// and cleanup has run; a job the caller never comes back for simply expires
// via TTL instead.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, jobKey(jobID)).Err(); err != nil {
		return fmt.Errorf("registrystore: delete job %s: %w", jobID, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func jobKey(jobID string) string {
	return fmt.Sprintf("clustergo:job:%s", jobID)
}
