// Package cache holds the short-lived lookups of the stats API: public id to
// user key, and leaderboard snapshots.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss indicates the key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache is implemented by MemoryCache (single instance) and RedisCache
// (shared between instances).
type Cache interface {
	// Get returns ErrCacheMiss if key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet returns the cached value or stores the result of fn.
	// Concurrent misses on one key share a single fn call. Only an error
	// from fn is returned; a failed store still yields the value.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Clear drops every entry owned by this cache.
	Clear(ctx context.Context) error

	Close() error
}

// PublicIDKey is the key under which a public id maps to its user key.
func PublicIDKey(publicID string) string {
	return "pid:" + publicID
}

// LeaderboardKey is the key of one leaderboard snapshot.
func LeaderboardKey(metric string, limit int) string {
	return fmt.Sprintf("lb:%s:%d", metric, limit)
}

// GetOrSetJSON is GetOrSet for values stored as JSON.
func GetOrSetJSON[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var out T
	data, err := c.GetOrSet(ctx, key, ttl, func() ([]byte, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode cached %q: %w", key, err)
	}
	return out, nil
}

// loader collapses concurrent misses on the same key.
type loader struct {
	group singleflight.Group
}

func (l *loader) load(key string, get func() ([]byte, error), fn func() ([]byte, error), set func([]byte)) ([]byte, error) {
	if v, err := get(); err == nil {
		return v, nil
	}
	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		if v, err := get(); err == nil {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		set(v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
