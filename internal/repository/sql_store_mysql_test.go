package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/pkg/publicid"
)

func newMySQLMock(t *testing.T, now int64) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := quartz.NewMock(t)
	clock.Set(time.Unix(now, 0))

	store, err := NewSQLStore(db, "mysql", Options{Clock: clock})
	require.NoError(t, err)
	return store, mock
}

func TestMySQLStore_Append(t *testing.T) {
	now := int64(5000000)
	store, mock := newMySQLMock(t, now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT IGNORE INTO users").
		WithArgs("key-1", publicid.Derive("key-1", 0), "", 0, 0, 0, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE users SET").
		WithArgs("Bee", "Bee", nil, int64(1000), int64(1000), 10.0, 0.0, "key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO samples").
		WithArgs("key-1", "honey", int64(1000), 10.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM samples WHERE user_key").
		WithArgs("key-1", now-model.RetentionSeconds).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM nectar_samples WHERE user_key").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM buff_samples WHERE user_key").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.Append(context.Background(), "key-1", &model.Batch{At: 1000, Honey: f(10), Username: "Bee"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_AppendRollsBackOnFailure(t *testing.T) {
	store, mock := newMySQLMock(t, 5000000)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT IGNORE INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE users SET").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := store.Append(context.Background(), "key-1", &model.Batch{At: 1000, Honey: f(10)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update user profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_BeginFailure(t *testing.T) {
	store, mock := newMySQLMock(t, 5000000)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := store.Append(context.Background(), "key-1", &model.Batch{At: 1000, Honey: f(10)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Leaderboard(t *testing.T) {
	store, mock := newMySQLMock(t, 5000000)

	rows := sqlmock.NewRows([]string{"public_id", "username", "score", "last_activity"}).
		AddRow("aaaaaaaaaaaaaaaa", "Alpha", 50.0, int64(4999000)).
		AddRow("bbbbbbbbbbbbbbbb", "", 10.0, int64(4999500))
	mock.ExpectQuery("SELECT public_id, username, total_pollen AS score").
		WithArgs(int64(100), 25).
		WillReturnRows(rows)

	entries, err := store.Leaderboard(context.Background(), model.MetricPollen, 100, 25)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.LeaderboardEntry{
		Rank: 1, PublicID: "aaaaaaaaaaaaaaaa", Username: "Alpha", Score: 50, LastActivity: 4999000,
	}, entries[0])
	assert.Equal(t, 2, entries[1].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_FindUserKeyFallsBackToUsers(t *testing.T) {
	store, mock := newMySQLMock(t, 5000000)

	mock.ExpectQuery("SELECT user_key FROM player_sessions").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"user_key"}))
	mock.ExpectQuery("SELECT user_key FROM users").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"user_key"}).AddRow("key-9"))

	userKey, err := store.FindUserKey(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "key-9", userKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_GetConfigQueryError(t *testing.T) {
	store, mock := newMySQLMock(t, 5000000)

	mock.ExpectQuery("SELECT config_key, user_key, payload, created_at FROM shared_configs").
		WillReturnError(errors.New("gone away"))

	_, err := store.GetConfig(context.Background(), "ABCDEFGHIJ")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store, err := NewSQLStore(db, "mysql", Options{})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, store.Ping(context.Background()))
	assert.Equal(t, "mysql", store.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSchema_KeysCompareBinary(t *testing.T) {
	checked := 0
	for _, stmt := range mysqlDialect.schema {
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "user_key ") && !strings.HasPrefix(line, "config_key ") {
				continue
			}
			checked++
			assert.Contains(t, line, "COLLATE utf8mb4_bin", line)
		}
	}
	assert.Equal(t, 7, checked)
}
