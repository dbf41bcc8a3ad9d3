package repository

import (
	"context"
	"errors"

	"vinzhub-stats-api/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// SampleRepository defines per-user time series storage.
type SampleRepository interface {
	// Name is the storage mode tag reported to clients ("mysql", "sqlite", "postgres", "memory").
	Name() string

	// Append records every sample of the batch and updates the user's profile.
	Append(ctx context.Context, userKey string, batch *model.Batch) error

	// Read returns all points with timestamp >= cutoff, ascending.
	Read(ctx context.Context, userKey string, cutoff int64) (*model.Series, error)

	// Range returns all points with from <= timestamp < to, ascending.
	Range(ctx context.Context, userKey string, from, to int64) (*model.Series, error)

	// Prune deletes every sample older than before and returns how many were removed.
	Prune(ctx context.Context, before int64) (int64, error)

	// GetStats returns statistics about the store.
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// SessionRepository defines player session storage.
type SessionRepository interface {
	// UpsertSession creates or refreshes a player session.
	UpsertSession(ctx context.Context, session *model.PlayerSession) error

	// OnlineSessions returns sessions last seen at or after since.
	OnlineSessions(ctx context.Context, since int64) ([]model.PlayerSession, error)

	// FindUserKey resolves a public id. Returns ErrNotFound if unknown.
	FindUserKey(ctx context.Context, publicID string) (string, error)
}

// ConfigRepository defines shared config storage.
type ConfigRepository interface {
	// PutConfig stores cfg, replacing any config under the same key.
	PutConfig(ctx context.Context, cfg *model.SharedConfig) error

	// GetConfig returns the config for key. Returns ErrNotFound if absent.
	GetConfig(ctx context.Context, key string) (*model.SharedConfig, error)
}

// LeaderboardRepository ranks users by cumulative counters.
type LeaderboardRepository interface {
	// Leaderboard ranks users active at or after since by metric, highest first.
	Leaderboard(ctx context.Context, metric model.Metric, since int64, limit int) ([]model.LeaderboardEntry, error)
}

// Store is the full durable backend.
type Store interface {
	SampleRepository
	SessionRepository
	ConfigRepository
	LeaderboardRepository

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error
}
