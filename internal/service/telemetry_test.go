package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinzhub-stats-api/internal/cache"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/pkg/publicid"
)

func TestIngest_NoMetrics(t *testing.T) {
	fx := newFixture(t, 1500, false)
	svc := fx.telemetry()

	_, err := svc.Ingest(context.Background(), "k", &model.Batch{At: 1000, Buffs: map[string]float64{"Haste": 1}})
	assert.ErrorIs(t, err, ErrNoMetrics)

	series, _ := fx.memory.Read(context.Background(), "k", 0)
	assert.Empty(t, series.Buffs)
	sessions, _ := fx.memory.OnlineSessions(context.Background(), 0)
	assert.Empty(t, sessions)
}

func TestIngest_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1500, false)
	svc := fx.telemetry()

	res, err := svc.Ingest(ctx, "k", &model.Batch{At: 1000, Honey: f64(10), PlayerID: 7})
	require.NoError(t, err)
	assert.Equal(t, ModeMemory, res.Mode)

	stats, err := svc.Stats(ctx, "k", "1h")
	require.NoError(t, err)
	assert.Equal(t, ModeMemory, stats.Mode)
	assert.Equal(t, []model.Point{{T: 1000, V: 10}}, stats.Honey)
	assert.Equal(t, int64(1500-3600), stats.Since)
	assert.Equal(t, publicid.Derive("k", 0), stats.PublicID)

	for _, pid := range []string{publicid.Derive("k", 0), publicid.Derive("k", 7)} {
		v, err := fx.cache.Get(ctx, cache.PublicIDKey(pid))
		require.NoError(t, err)
		assert.Equal(t, "k", string(v))
	}

	sessions, _ := fx.memory.OnlineSessions(ctx, 0)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1500), sessions[0].LastSeen, "last seen is server time")
}

func TestIngest_Durable(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1500, true)
	svc := fx.telemetry()

	res, err := svc.Ingest(ctx, "k", &model.Batch{At: 1000, Honey: f64(10)})
	require.NoError(t, err)
	assert.Equal(t, "mysql", res.Mode)

	durable, _ := fx.durable.MemoryStore.Read(ctx, "k", 0)
	assert.Len(t, durable.Honey, 1)
	memory, _ := fx.memory.Read(ctx, "k", 0)
	assert.Empty(t, memory.Honey, "healthy durable writes skip memory")

	stats, err := svc.Stats(ctx, "k", "1h")
	require.NoError(t, err)
	assert.Equal(t, "mysql", stats.Mode)
	assert.Equal(t, []model.Point{{T: 1000, V: 10}}, stats.Honey)
}

func TestIngest_DurableFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1500, true)
	fx.durable.appendErr = errors.New("connection refused")
	svc := fx.telemetry()

	res, err := svc.Ingest(ctx, "k", &model.Batch{At: 1000, Honey: f64(10), Username: "Bee"})
	require.NoError(t, err)
	assert.Equal(t, ModeMemoryFallback, res.Mode)

	memory, _ := fx.memory.Read(ctx, "k", 0)
	assert.Equal(t, []model.Point{{T: 1000, V: 10}}, memory.Honey)
	sessions, _ := fx.memory.OnlineSessions(ctx, 0)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Bee", sessions[0].Username)
}

func TestIngest_SessionFailureKeepsDurableMode(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1500, true)
	fx.durable.sessionErr = errors.New("lock wait timeout")
	svc := fx.telemetry()

	res, err := svc.Ingest(ctx, "k", &model.Batch{At: 1000, Honey: f64(10)})
	require.NoError(t, err)
	assert.Equal(t, "mysql", res.Mode)

	sessions, _ := fx.memory.OnlineSessions(ctx, 0)
	assert.Len(t, sessions, 1)
}

func TestStats_ReadFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1500, true)
	fx.durable.appendErr = errors.New("down")
	fx.durable.readErr = errors.New("down")
	svc := fx.telemetry()

	_, err := svc.Ingest(ctx, "k", &model.Batch{At: 1000, Honey: f64(10)})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "k", "1h")
	require.NoError(t, err)
	assert.Equal(t, ModeMemoryFallback, stats.Mode)
	assert.Equal(t, []model.Point{{T: 1000, V: 10}}, stats.Honey)
}

func TestStats_EmptyArraysAndBackpack(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1500, false)
	svc := fx.telemetry()

	_, err := svc.Ingest(ctx, "k", &model.Batch{At: 900, Backpack: f64(50), BackpackCapacity: f64(200)})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "k", "")
	require.NoError(t, err)
	assert.NotNil(t, stats.Honey)
	assert.NotNil(t, stats.Pollen)
	assert.Equal(t, []model.BackpackPoint{{T: 900, V: 50, Percent: 25}}, stats.Backpack)
	assert.Equal(t, int64(86400), stats.Period)
}

func TestStats_CapsSeries(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 10000, false)
	svc := fx.telemetry()

	for i := int64(1); i <= MaxSeriesPoints+100; i++ {
		require.NoError(t, fx.memory.Append(ctx, "k", &model.Batch{At: i, Honey: f64(float64(i))}))
	}

	stats, err := svc.Stats(ctx, "k", "1d")
	require.NoError(t, err)
	require.Len(t, stats.Honey, MaxSeriesPoints)
	assert.Equal(t, int64(101), stats.Honey[0].T)
	assert.Equal(t, int64(MaxSeriesPoints+100), stats.Honey[len(stats.Honey)-1].T)
}

func TestStats_RetentionOnRead(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 100, false)
	svc := fx.telemetry()

	_, err := svc.Ingest(ctx, "k", &model.Batch{At: 100, Honey: f64(1)})
	require.NoError(t, err)

	fx.clock.Set(time.Unix(100+model.RetentionSeconds+1, 0))
	stats, err := svc.Stats(ctx, "k", "30d")
	require.NoError(t, err)
	assert.Empty(t, stats.Honey)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	fx := newFixture(t, day+86400, true)
	svc := fx.telemetry()

	for _, b := range []*model.Batch{
		{At: day - 10, Honey: f64(100)},
		{At: day + 3600, Honey: f64(5)},
		{At: day + 3*3600, Honey: f64(7), Pollen: f64(1)},
		{At: day + 86400, Honey: f64(100)},
	} {
		_, err := svc.Ingest(ctx, "k", b)
		require.NoError(t, err)
	}

	h, err := svc.History(ctx, "k", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "mysql", h.Mode)
	assert.Equal(t, day, h.From)
	assert.Equal(t, day+86400, h.To)
	assert.Equal(t, 12.0, h.Summary.TotalHoney)
	assert.Equal(t, 2, h.Summary.Samples)
	assert.Equal(t, 6.0, h.Summary.AvgHourlyHoney)
	assert.Len(t, h.Pollen, 1)
}

func TestHistory_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t, 1000, false).telemetry().History(ctx, "k", "2024-01-01")
	assert.ErrorIs(t, err, ErrDurableRequired)

	fx := newFixture(t, 1000, true)
	_, err = fx.telemetry().History(ctx, "k", "01/01/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)

	fx.durable.readErr = errors.New("timeout")
	_, err = fx.telemetry().History(ctx, "k", "2024-01-01")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDurableRequired)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, model.HistorySummary{}, summarize(nil))
	assert.Equal(t, model.HistorySummary{TotalHoney: 5, AvgHourlyHoney: 5, Samples: 1}, summarize([]model.Point{{T: 10, V: 5}}))
	// Less than an hour apart still divides by one hour.
	assert.Equal(t, 12.0, summarize([]model.Point{{T: 0, V: 5}, {T: 60, V: 7}}).AvgHourlyHoney)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	now := int64(1000000)
	fx := newFixture(t, now, true)
	fx.durable.board = []model.LeaderboardEntry{{Rank: 1, PublicID: "p1", Username: "Alpha", Score: 50}}
	svc := fx.telemetry()

	entries, res, err := svc.Leaderboard(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "mysql", res.Mode)
	assert.Equal(t, fx.durable.board, entries)
	assert.Equal(t, DefaultLeaderboardLimit, fx.durable.boardLimit)
	assert.Equal(t, now-7*86400, fx.durable.boardSince)

	_, _, err = svc.Leaderboard(ctx, model.MetricHoney, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.durable.boardCalls, "second call is served from cache")

	fx.clock.Advance(30 * time.Second).MustWait(ctx)
	_, _, err = svc.Leaderboard(ctx, model.MetricHoney, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.durable.boardCalls)
}

func TestLeaderboard_Errors(t *testing.T) {
	ctx := context.Background()

	_, _, err := newFixture(t, 1000, false).telemetry().Leaderboard(ctx, model.MetricHoney, 10)
	assert.ErrorIs(t, err, ErrDurableRequired)

	fx := newFixture(t, 1000, true)
	_, _, err = fx.telemetry().Leaderboard(ctx, model.MetricBackpack, 10)
	assert.ErrorIs(t, err, ErrInvalidMetric)

	fx.durable.boardErr = errors.New("syntax error")
	_, _, err = fx.telemetry().Leaderboard(ctx, model.MetricPollen, 10)
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{0: 10, -5: 1, 1: 1, 50: 50, 100: 100, 101: 100, 5000: 100}
	for in, want := range tests {
		assert.Equal(t, want, ClampLimit(in), "limit %d", in)
	}
}
