package service

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"

	"vinzhub-stats-api/internal/cache"
	"vinzhub-stats-api/internal/logger"
	"vinzhub-stats-api/internal/metrics"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/repository"
)

// fakeStore is a durable store backed by its own memory store, with
// switchable failures.
type fakeStore struct {
	*repository.MemoryStore

	appendErr  error
	readErr    error
	sessionErr error
	findErr    error
	configErr  error
	pruneErr   error
	boardErr   error

	board      []model.LeaderboardEntry
	boardCalls int
	boardSince int64
	boardLimit int
}

func newFakeStore(clock quartz.Clock) *fakeStore {
	return &fakeStore{MemoryStore: repository.NewMemoryStore(clock, 0)}
}

func (f *fakeStore) Name() string { return "mysql" }

func (f *fakeStore) Append(ctx context.Context, userKey string, batch *model.Batch) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryStore.Append(ctx, userKey, batch)
}

func (f *fakeStore) Read(ctx context.Context, userKey string, cutoff int64) (*model.Series, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.MemoryStore.Read(ctx, userKey, cutoff)
}

func (f *fakeStore) Range(ctx context.Context, userKey string, from, to int64) (*model.Series, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.MemoryStore.Range(ctx, userKey, from, to)
}

func (f *fakeStore) Prune(ctx context.Context, before int64) (int64, error) {
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	return f.MemoryStore.Prune(ctx, before)
}

func (f *fakeStore) UpsertSession(ctx context.Context, s *model.PlayerSession) error {
	if f.sessionErr != nil {
		return f.sessionErr
	}
	return f.MemoryStore.UpsertSession(ctx, s)
}

func (f *fakeStore) OnlineSessions(ctx context.Context, since int64) ([]model.PlayerSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.MemoryStore.OnlineSessions(ctx, since)
}

func (f *fakeStore) FindUserKey(ctx context.Context, publicID string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	return f.MemoryStore.FindUserKey(ctx, publicID)
}

func (f *fakeStore) PutConfig(ctx context.Context, cfg *model.SharedConfig) error {
	if f.configErr != nil {
		return f.configErr
	}
	return f.MemoryStore.PutConfig(ctx, cfg)
}

func (f *fakeStore) GetConfig(ctx context.Context, key string) (*model.SharedConfig, error) {
	if f.configErr != nil {
		return nil, f.configErr
	}
	return f.MemoryStore.GetConfig(ctx, key)
}

func (f *fakeStore) Leaderboard(ctx context.Context, metric model.Metric, since int64, limit int) ([]model.LeaderboardEntry, error) {
	f.boardCalls++
	f.boardSince = since
	f.boardLimit = limit
	if f.boardErr != nil {
		return nil, f.boardErr
	}
	return f.board, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

var _ repository.Store = (*fakeStore)(nil)

type fixture struct {
	clock    *quartz.Mock
	durable  *fakeStore
	memory   *repository.MemoryStore
	backends Backends
	cache    *cache.MemoryCache
}

// newFixture builds backends at the given unix time. durable=false gives
// memory-only mode.
func newFixture(t *testing.T, now int64, durable bool) *fixture {
	t.Helper()

	clock := quartz.NewMock(t)
	clock.Set(time.Unix(now, 0))

	// The cache sweep never comes due, so tests may move the clock freely.
	fx := &fixture{
		clock:  clock,
		memory: repository.NewMemoryStore(clock, 0),
		cache:  cache.NewMemoryCache(clock, 10*365*24*time.Hour),
	}
	t.Cleanup(func() { _ = fx.cache.Close() })

	fx.backends.Memory = fx.memory
	if durable {
		fx.durable = newFakeStore(clock)
		fx.backends.Durable = fx.durable
	}
	return fx
}

func (fx *fixture) telemetry() *TelemetryService {
	return NewTelemetryService(fx.backends, fx.cache, fx.clock, metrics.Noop(), logger.Nop(), TelemetryConfig{})
}

func (fx *fixture) players() *PlayerService {
	return NewPlayerService(fx.backends, fx.cache, fx.clock, metrics.Noop(), logger.Nop(), time.Hour)
}

func f64(v float64) *float64 { return &v }
