package repository

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/pkg/publicid"
)

func f(v float64) *float64 { return &v }

func newSQLiteStore(t *testing.T, now int64) (*SQLStore, *quartz.Mock) {
	t.Helper()

	clock := quartz.NewMock(t)
	clock.Set(time.Unix(now, 0))

	store, err := OpenSQLite(context.Background(), ":memory:", Options{Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestSQLStore_AppendRead(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 1500)

	err := store.Append(ctx, "key-1", &model.Batch{
		At:           1000,
		Honey:        f(10),
		CurrentHoney: f(250),
		Nectar:       map[string]float64{"comforting": 3},
		Buffs:        map[string]float64{"Haste": 2},
		Username:     "BeeKeeper",
	})
	require.NoError(t, err)

	series, err := store.Read(ctx, "key-1", 1500-3600)
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{T: 1000, V: 10}}, series.Honey)
	assert.Equal(t, []model.Point{{T: 1000, V: 3}}, series.Nectar["comforting"])
	assert.Equal(t, []model.Point{{T: 1000, V: 2}}, series.Buffs["Haste"])
	assert.Equal(t, "BeeKeeper", series.Profile.Username)
	assert.Equal(t, int64(1000), series.Profile.LastActivity)
	require.NotNil(t, series.Profile.CurrentHoney)
	assert.Equal(t, 250.0, *series.Profile.CurrentHoney)

	series, err = store.Read(ctx, "key-1", 1001)
	require.NoError(t, err)
	assert.Empty(t, series.Honey)
	assert.Empty(t, series.Nectar)
}

func TestStores_UserKeysAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	sqlStore, clock := newSQLiteStore(t, 1500)
	stores := []SampleRepository{sqlStore, NewMemoryStore(clock, 0)}

	for _, store := range stores {
		t.Run(store.Name(), func(t *testing.T) {
			require.NoError(t, store.Append(ctx, "abc", &model.Batch{At: 1000, Honey: f(1)}))
			require.NoError(t, store.Append(ctx, "ABC", &model.Batch{At: 1001, Honey: f(2)}))

			lower, err := store.Read(ctx, "abc", 0)
			require.NoError(t, err)
			assert.Equal(t, []model.Point{{T: 1000, V: 1}}, lower.Honey)

			upper, err := store.Read(ctx, "ABC", 0)
			require.NoError(t, err)
			assert.Equal(t, []model.Point{{T: 1001, V: 2}}, upper.Honey)
		})
	}
}

func TestStores_LastActivityNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	sqlStore, clock := newSQLiteStore(t, 1500)
	stores := []SampleRepository{sqlStore, NewMemoryStore(clock, 0)}

	for _, store := range stores {
		t.Run(store.Name(), func(t *testing.T) {
			require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 1400, Honey: f(1)}))
			require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 900, Honey: f(2)}))

			series, err := store.Read(ctx, "k", 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1400), series.Profile.LastActivity)
			assert.Equal(t, []model.Point{{T: 900, V: 2}, {T: 1400, V: 1}}, series.Honey)
		})
	}
}

func TestSQLStore_ReadUnknownUser(t *testing.T) {
	store, _ := newSQLiteStore(t, 1500)

	series, err := store.Read(context.Background(), "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, series.Honey)
	assert.Nil(t, series.Profile.CurrentHoney)
	assert.Empty(t, series.Profile.Username)
}

func TestSQLStore_OutOfOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 5000)

	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 3000, Honey: f(3)}))
	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 1000, Honey: f(1)}))
	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 1000, Honey: f(1)}))

	series, err := store.Read(ctx, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{T: 1000, V: 1}, {T: 1000, V: 1}, {T: 3000, V: 3}}, series.Honey)
}

func TestSQLStore_CapacitySeed(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 2000)

	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 400, Backpack: f(1), BackpackCapacity: f(50)}))
	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 500, Backpack: f(1), BackpackCapacity: f(100)}))
	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 1000, Backpack: f(50)}))

	series, err := store.Read(ctx, "k", 800)
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{T: 500, V: 100}}, series.BackpackCapacity)
	assert.Equal(t, []model.Point{{T: 1000, V: 50}}, series.Backpack)
}

func TestSQLStore_RetentionPruneOnWrite(t *testing.T) {
	ctx := context.Background()
	store, clock := newSQLiteStore(t, 100)

	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 100, Honey: f(1)}))

	clock.Set(time.Unix(100+model.RetentionSeconds+1, 0))
	require.NoError(t, store.Append(ctx, "k", &model.Batch{At: 100000, Honey: f(2)}))

	series, err := store.Read(ctx, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{T: 100000, V: 2}}, series.Honey)
}

func TestSQLStore_Range(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 200000)

	for _, at := range []int64{86399, 86400, 100000, 172800} {
		require.NoError(t, store.Append(ctx, "k", &model.Batch{At: at, Honey: f(float64(at))}))
	}

	series, err := store.Range(ctx, "k", 86400, 172800)
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{T: 86400, V: 86400}, {T: 100000, V: 100000}}, series.Honey)
}

func TestSQLStore_Prune(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 5000)

	require.NoError(t, store.Append(ctx, "a", &model.Batch{At: 1000, Honey: f(1), Buffs: map[string]float64{"x": 1}}))
	require.NoError(t, store.Append(ctx, "b", &model.Batch{At: 3000, Honey: f(1)}))

	removed, err := store.Prune(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats["driver"])
	assert.Equal(t, int64(1), stats["samples"])
	assert.Equal(t, int64(2), stats["users"])
}

func TestSQLStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 1000)

	pid := publicid.Derive("k", 42)
	require.NoError(t, store.UpsertSession(ctx, &model.PlayerSession{
		UserKey: "k", PlayerID: 42, PublicID: pid, Username: "Bee", LastSeen: 900, CurrentHoney: f(5),
	}))
	require.NoError(t, store.UpsertSession(ctx, &model.PlayerSession{
		UserKey: "k", PlayerID: 42, PublicID: pid, LastSeen: 950,
	}))

	sessions, err := store.OnlineSessions(ctx, 900)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Bee", sessions[0].Username)
	assert.Equal(t, int64(950), sessions[0].LastSeen)
	require.NotNil(t, sessions[0].CurrentHoney)
	assert.Equal(t, 5.0, *sessions[0].CurrentHoney)

	sessions, err = store.OnlineSessions(ctx, 951)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	userKey, err := store.FindUserKey(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, "k", userKey)

	userKey, err = store.FindUserKey(ctx, publicid.Derive("k", 0))
	require.NoError(t, err)
	assert.Equal(t, "k", userKey)

	_, err = store.FindUserKey(ctx, "0000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_Configs(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 1000)

	_, err := store.GetConfig(ctx, "ABCDEFGHIJ")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.PutConfig(ctx, &model.SharedConfig{
		Key: "ABCDEFGHIJ", UserKey: "owner", Payload: []byte(`{"a":1}`), CreatedAt: 10,
	}))
	require.NoError(t, store.PutConfig(ctx, &model.SharedConfig{
		Key: "ABCDEFGHIJ", UserKey: "other", Payload: []byte(`{"a":2}`), CreatedAt: 20,
	}))

	cfg, err := store.GetConfig(ctx, "ABCDEFGHIJ")
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.UserKey)
	assert.JSONEq(t, `{"a":2}`, string(cfg.Payload))
	assert.Equal(t, int64(20), cfg.CreatedAt)
}

func TestSQLStore_Leaderboard(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t, 1000000)

	require.NoError(t, store.Append(ctx, "a", &model.Batch{At: 999000, Honey: f(5), Username: "Alpha"}))
	require.NoError(t, store.Append(ctx, "a", &model.Batch{At: 999100, Honey: f(7), Pollen: f(1)}))
	require.NoError(t, store.Append(ctx, "b", &model.Batch{At: 999200, Honey: f(20), Pollen: f(9), Username: "Bravo"}))
	require.NoError(t, store.Append(ctx, "c", &model.Batch{At: 10, Honey: f(500)}))

	entries, err := store.Leaderboard(ctx, model.MetricHoney, 999000-7*86400, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Bravo", entries[0].Username)
	assert.Equal(t, 20.0, entries[0].Score)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, publicid.Derive("a", 0), entries[1].PublicID)
	assert.Equal(t, 12.0, entries[1].Score)

	entries, err = store.Leaderboard(ctx, model.MetricPollen, 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bravo", entries[0].Username)

	_, err = store.Leaderboard(ctx, model.MetricBackpack, 0, 10)
	assert.Error(t, err)
}

func TestNewSQLStore_UnknownDialect(t *testing.T) {
	_, err := NewSQLStore(nil, "oracle", Options{})
	assert.Error(t, err)
}

func TestDialect_InsertIgnore(t *testing.T) {
	assert.Equal(t, "INSERT IGNORE INTO t (a, b) VALUES (?, ?)", mysqlDialect.insertIgnore("t", "a", "b"))
	assert.Equal(t, "INSERT OR IGNORE INTO t (a) VALUES (?)", sqliteDialect.insertIgnore("t", "a"))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES (?, ?) ON CONFLICT DO NOTHING", postgresDialect.insertIgnore("t", "a", "b"))
}
