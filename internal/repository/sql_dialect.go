package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// dialect captures what differs between the supported SQL backends.
// Every query is written with ? placeholders and rebound by sqlx.
type dialect struct {
	name   string
	driver string
	schema []string

	ignorePrefix string
	ignoreSuffix string
}

// insertIgnore builds an insert that silently skips rows whose key already exists.
func (d *dialect) insertIgnore(table string, columns ...string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("%s %s (%s) VALUES (%s)%s",
		d.ignorePrefix, table, strings.Join(columns, ", "), marks, d.ignoreSuffix)
}

func dialectFor(name string) (*dialect, error) {
	switch name {
	case "mysql":
		return mysqlDialect, nil
	case "sqlite":
		return sqliteDialect, nil
	case "postgres":
		return postgresDialect, nil
	}
	return nil, fmt.Errorf("unsupported database type %q", name)
}

var mysqlDialect = &dialect{
	name:         "mysql",
	driver:       "mysql",
	ignorePrefix: "INSERT IGNORE INTO",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_key VARCHAR(128) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL PRIMARY KEY,
			public_id CHAR(16) NOT NULL,
			username VARCHAR(64) NOT NULL DEFAULT '',
			current_honey DOUBLE NULL,
			last_activity BIGINT NOT NULL DEFAULT 0,
			total_honey DOUBLE NOT NULL DEFAULT 0,
			total_pollen DOUBLE NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			INDEX idx_users_public_id (public_id),
			INDEX idx_users_last_activity (last_activity)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS samples (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			user_key VARCHAR(128) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
			metric ENUM('honey','pollen','backpack','backpack_capacity') NOT NULL,
			ts BIGINT NOT NULL,
			value DOUBLE NOT NULL,
			INDEX idx_samples_user_ts (user_key, ts),
			INDEX idx_samples_ts (ts),
			CONSTRAINT fk_samples_user FOREIGN KEY (user_key) REFERENCES users(user_key) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS nectar_samples (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			user_key VARCHAR(128) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
			nectar_type VARCHAR(32) NOT NULL,
			ts BIGINT NOT NULL,
			value DOUBLE NOT NULL,
			INDEX idx_nectar_user_ts (user_key, ts),
			INDEX idx_nectar_ts (ts),
			CONSTRAINT fk_nectar_user FOREIGN KEY (user_key) REFERENCES users(user_key) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS buff_samples (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			user_key VARCHAR(128) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
			buff_name VARCHAR(64) NOT NULL,
			ts BIGINT NOT NULL,
			value DOUBLE NOT NULL,
			INDEX idx_buff_user_ts (user_key, ts),
			INDEX idx_buff_ts (ts),
			CONSTRAINT fk_buff_user FOREIGN KEY (user_key) REFERENCES users(user_key) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS player_sessions (
			user_key VARCHAR(128) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
			player_id BIGINT NOT NULL,
			public_id CHAR(16) NOT NULL,
			username VARCHAR(64) NOT NULL DEFAULT '',
			last_seen BIGINT NOT NULL,
			current_honey DOUBLE NULL,
			PRIMARY KEY (user_key, player_id),
			INDEX idx_sessions_public_id (public_id),
			INDEX idx_sessions_last_seen (last_seen),
			CONSTRAINT fk_sessions_user FOREIGN KEY (user_key) REFERENCES users(user_key) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS shared_configs (
			config_key VARCHAR(32) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL PRIMARY KEY,
			user_key VARCHAR(128) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
			payload MEDIUMTEXT NOT NULL,
			created_at BIGINT NOT NULL,
			CONSTRAINT fk_configs_user FOREIGN KEY (user_key) REFERENCES users(user_key) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

var sqliteDialect = &dialect{
	name:         "sqlite",
	driver:       "sqlite",
	ignorePrefix: "INSERT OR IGNORE INTO",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_key TEXT NOT NULL PRIMARY KEY,
			public_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			current_honey REAL NULL,
			last_activity INTEGER NOT NULL DEFAULT 0,
			total_honey REAL NOT NULL DEFAULT 0,
			total_pollen REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_public_id ON users(public_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity)`,
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_key TEXT NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			metric TEXT NOT NULL CHECK (metric IN ('honey','pollen','backpack','backpack_capacity')),
			ts INTEGER NOT NULL,
			value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_user_ts ON samples(user_key, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON samples(ts)`,
		`CREATE TABLE IF NOT EXISTS nectar_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_key TEXT NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			nectar_type TEXT NOT NULL,
			ts INTEGER NOT NULL,
			value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nectar_user_ts ON nectar_samples(user_key, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_nectar_ts ON nectar_samples(ts)`,
		`CREATE TABLE IF NOT EXISTS buff_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_key TEXT NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			buff_name TEXT NOT NULL,
			ts INTEGER NOT NULL,
			value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buff_user_ts ON buff_samples(user_key, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_buff_ts ON buff_samples(ts)`,
		`CREATE TABLE IF NOT EXISTS player_sessions (
			user_key TEXT NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			player_id INTEGER NOT NULL,
			public_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			last_seen INTEGER NOT NULL,
			current_honey REAL NULL,
			PRIMARY KEY (user_key, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_public_id ON player_sessions(public_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON player_sessions(last_seen)`,
		`CREATE TABLE IF NOT EXISTS shared_configs (
			config_key TEXT NOT NULL PRIMARY KEY,
			user_key TEXT NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	},
}

var postgresDialect = &dialect{
	name:         "postgres",
	driver:       "postgres",
	ignorePrefix: "INSERT INTO",
	ignoreSuffix: " ON CONFLICT DO NOTHING",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_key VARCHAR(128) NOT NULL PRIMARY KEY,
			public_id CHAR(16) NOT NULL,
			username VARCHAR(64) NOT NULL DEFAULT '',
			current_honey DOUBLE PRECISION NULL,
			last_activity BIGINT NOT NULL DEFAULT 0,
			total_honey DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_pollen DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_public_id ON users(public_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity)`,
		`CREATE TABLE IF NOT EXISTS samples (
			id BIGSERIAL PRIMARY KEY,
			user_key VARCHAR(128) NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			metric VARCHAR(32) NOT NULL CHECK (metric IN ('honey','pollen','backpack','backpack_capacity')),
			ts BIGINT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_user_ts ON samples(user_key, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON samples(ts)`,
		`CREATE TABLE IF NOT EXISTS nectar_samples (
			id BIGSERIAL PRIMARY KEY,
			user_key VARCHAR(128) NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			nectar_type VARCHAR(32) NOT NULL,
			ts BIGINT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nectar_user_ts ON nectar_samples(user_key, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_nectar_ts ON nectar_samples(ts)`,
		`CREATE TABLE IF NOT EXISTS buff_samples (
			id BIGSERIAL PRIMARY KEY,
			user_key VARCHAR(128) NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			buff_name VARCHAR(64) NOT NULL,
			ts BIGINT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buff_user_ts ON buff_samples(user_key, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_buff_ts ON buff_samples(ts)`,
		`CREATE TABLE IF NOT EXISTS player_sessions (
			user_key VARCHAR(128) NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			player_id BIGINT NOT NULL,
			public_id CHAR(16) NOT NULL,
			username VARCHAR(64) NOT NULL DEFAULT '',
			last_seen BIGINT NOT NULL,
			current_honey DOUBLE PRECISION NULL,
			PRIMARY KEY (user_key, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_public_id ON player_sessions(public_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON player_sessions(last_seen)`,
		`CREATE TABLE IF NOT EXISTS shared_configs (
			config_key VARCHAR(32) NOT NULL PRIMARY KEY,
			user_key VARCHAR(128) NOT NULL REFERENCES users(user_key) ON DELETE CASCADE,
			payload TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	},
}
