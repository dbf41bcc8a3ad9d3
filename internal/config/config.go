package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// PlaceholderSecret is the shipped default for shared secrets. A secret still
// set to this value counts as "not configured".
const PlaceholderSecret = "change-me"

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	ConfigDB  ConfigStoreConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	IngestRateLimit int           `envconfig:"INGEST_RATE_LIMIT" default:"0"` // opt-in requests per minute per user key, 0 disables
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name           string `envconfig:"APP_NAME" default:"vinzhub-stats-api"`
	Environment    string `envconfig:"APP_ENV" default:"development"`
	Version        string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	LoginKey       string `envconfig:"LOGIN_KEY" default:""` // Admin stats login key
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// AuthConfig holds the shared secrets checked by the auth middleware.
type AuthConfig struct {
	WriteKey string `envconfig:"WRITE_KEY" default:"change-me"`
	ReadKey  string `envconfig:"READ_KEY" default:"change-me"`
}

// ReadKeyConfigured reports whether the read secret was changed from its placeholder.
func (a *AuthConfig) ReadKeyConfigured() bool {
	return a.ReadKey != "" && a.ReadKey != PlaceholderSecret
}

// DatabaseConfig holds the durable backend settings.
type DatabaseConfig struct {
	Type         string        `envconfig:"DB_TYPE" default:"mysql"` // mysql, sqlite, or postgres
	Host         string        `envconfig:"DB_HOST" default:""`
	Port         int           `envconfig:"DB_PORT" default:"0"`
	Name         string        `envconfig:"DB_NAME" default:""`
	User         string        `envconfig:"DB_USER" default:""`
	Password     string        `envconfig:"DB_PASS" default:""`
	SSLMode      string        `envconfig:"DB_SSLMODE" default:"disable"`
	Path         string        `envconfig:"DB_PATH" default:"./data/stats.db"`
	MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	QueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`
}

// Enabled reports whether durable mode can be attempted. Server databases need
// host, user, password and name; sqlite only needs a path.
func (d *DatabaseConfig) Enabled() bool {
	if d.Type == "sqlite" {
		return d.Path != ""
	}
	return d.Host != "" && d.User != "" && d.Password != "" && d.Name != ""
}

// MySQLDSN returns the MySQL data source name.
func (d *DatabaseConfig) MySQLDSN() string {
	port := d.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		d.User, d.Password, d.Host, port, d.Name)
}

// PostgresDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) PostgresDSN() string {
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, port, d.Name, d.SSLMode)
}

// CacheConfig holds settings for the public-id and leaderboard cache.
type CacheConfig struct {
	Type           string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	PublicIDTTL    time.Duration `envconfig:"CACHE_PUBLIC_ID_TTL" default:"24h"`
	LeaderboardTTL time.Duration `envconfig:"CACHE_LEADERBOARD_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"vinzhub:stats"`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ConfigStoreConfig selects where shared configs live.
type ConfigStoreConfig struct {
	Type            string `envconfig:"CONFIG_STORE" default:"sql"` // sql or mongodb
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"vinzhub"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"shared_configs"`
}

// RetentionConfig holds pruning and memory bounds.
type RetentionConfig struct {
	Interval        time.Duration `envconfig:"RETENTION_INTERVAL" default:"1h"`
	MemoryMaxPoints int           `envconfig:"MEMORY_MAX_POINTS" default:"20000"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.Database.Type {
	case "mysql", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.Database.Type)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
