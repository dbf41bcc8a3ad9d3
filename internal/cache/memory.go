package cache

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// DefaultCleanupInterval is how often expired entries are swept.
const DefaultCleanupInterval = time.Minute

type entry struct {
	value    []byte
	deadline time.Time
}

func (e entry) live(now time.Time) bool {
	return now.Before(e.deadline)
}

// MemoryCache keeps entries in a map, for single-instance deployments.
// Expiry follows the injected clock.
type MemoryCache struct {
	clock  quartz.Clock
	loader loader

	mu      sync.RWMutex
	entries map[string]entry

	stop  context.CancelFunc
	swept quartz.Waiter
}

// NewMemoryCache creates a cache that sweeps expired entries every
// cleanupInterval until Close.
func NewMemoryCache(clock quartz.Clock, cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		clock:   clock,
		entries: make(map[string]entry),
		stop:    cancel,
	}
	c.swept = clock.TickerFunc(ctx, cleanupInterval, func() error {
		c.sweep()
		return nil
	}, "cache", "sweep")
	return c
}

func (c *MemoryCache) lookup(key string) (entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.live(c.clock.Now()) {
		return entry{}, false
	}
	return e, true
}

// Get returns a copy of the stored value.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{
		value:    append([]byte(nil), value...),
		deadline: c.clock.Now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.lookup(key)
	return ok, nil
}

// GetOrSet implements Cache.
func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	return c.loader.load(key,
		func() ([]byte, error) { return c.Get(ctx, key) },
		fn,
		func(v []byte) { _ = c.Set(ctx, key, v, ttl) },
	)
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper and waits for it to exit.
func (c *MemoryCache) Close() error {
	c.stop()
	_ = c.swept.Wait()
	return nil
}

func (c *MemoryCache) sweep() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
