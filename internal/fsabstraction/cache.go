package fsabstraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Second

type cacheEntry struct {
	value    interface{}
	err      error
	storedAt time.Time
}

// Cached decorates an FS with a short-lived result cache keyed by
// (path, op, args), per spec §4.5. It holds no identity of its own beyond
// what the wrapped FS already encodes (target, since Remote is constructed
// per-target); callers needing per-target isolation simply wrap a
// per-target Remote.
type Cached struct {
	inner FS
	ttl   time.Duration
	data  sync.Map // key string -> cacheEntry
}

// NewCached wraps inner with a cache using the default 5s TTL.
func NewCached(inner FS) *Cached {
	return &Cached{inner: inner, ttl: defaultCacheTTL}
}

// NewCachedWithTTL wraps inner with an explicit TTL, for tests.
func NewCachedWithTTL(inner FS, ttl time.Duration) *Cached {
	return &Cached{inner: inner, ttl: ttl}
}

func cacheKey(op string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(op))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) fetch(key string, miss func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.data.Load(key); ok {
		entry := v.(cacheEntry)
		if time.Since(entry.storedAt) < c.ttl {
			return entry.value, entry.err
		}
		c.data.Delete(key)
	}

	value, err := miss()
	c.data.Store(key, cacheEntry{value: value, err: err, storedAt: time.Now()})
	return value, err
}

func (c *Cached) List(ctx context.Context, path string) ([]Entry, error) {
	v, err := c.fetch(cacheKey("list", path), func() (interface{}, error) { return c.inner.List(ctx, path) })
	return entries(v), err
}

func (c *Cached) Find(ctx context.Context, path, pattern string) ([]Entry, error) {
	v, err := c.fetch(cacheKey("find", path, pattern), func() (interface{}, error) { return c.inner.Find(ctx, path, pattern) })
	return entries(v), err
}

func (c *Cached) Glob(ctx context.Context, path, pattern string) ([]Entry, error) {
	v, err := c.fetch(cacheKey("glob", path, pattern), func() (interface{}, error) { return c.inner.Glob(ctx, path, pattern) })
	return entries(v), err
}

func (c *Cached) Stat(ctx context.Context, path string) (StatResult, error) {
	v, err := c.fetch(cacheKey("stat", path), func() (interface{}, error) { return c.inner.Stat(ctx, path) })
	if v == nil {
		return StatResult{}, err
	}
	return v.(StatResult), err
}

func (c *Cached) Exists(ctx context.Context, path string) (bool, error) {
	v, err := c.fetch(cacheKey("exists", path), func() (interface{}, error) { return c.inner.Exists(ctx, path) })
	return asBool(v), err
}

func (c *Cached) IsDir(ctx context.Context, path string) (bool, error) {
	v, err := c.fetch(cacheKey("isdir", path), func() (interface{}, error) { return c.inner.IsDir(ctx, path) })
	return asBool(v), err
}

func (c *Cached) IsFile(ctx context.Context, path string) (bool, error) {
	v, err := c.fetch(cacheKey("isfile", path), func() (interface{}, error) { return c.inner.IsFile(ctx, path) })
	return asBool(v), err
}

func (c *Cached) TreeSize(ctx context.Context, path string) (int64, error) {
	v, err := c.fetch(cacheKey("treesize", path), func() (interface{}, error) { return c.inner.TreeSize(ctx, path) })
	if v == nil {
		return 0, err
	}
	return v.(int64), err
}

func (c *Cached) Count(ctx context.Context, path, pattern string) (int, error) {
	v, err := c.fetch(cacheKey("count", path, pattern), func() (interface{}, error) { return c.inner.Count(ctx, path, pattern) })
	if v == nil {
		return 0, err
	}
	return v.(int), err
}

// Refresh clears the whole cache, whatever path it is given: keys are
// hashed, so entries cannot be matched against path. The next call of any
// operation re-queries; path is then passed on to the inner FS's Refresh.
func (c *Cached) Refresh(path string) {
	c.data.Range(func(key, _ interface{}) bool {
		c.data.Delete(key)
		return true
	})
	c.inner.Refresh(path)
}

func entries(v interface{}) []Entry {
	if v == nil {
		return nil
	}
	return v.([]Entry)
}

func asBool(v interface{}) bool {
	if v == nil {
		return false
	}
	return v.(bool)
}
