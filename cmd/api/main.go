package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/cache"
	"vinzhub-stats-api/internal/config"
	"vinzhub-stats-api/internal/handler"
	"vinzhub-stats-api/internal/logger"
	"vinzhub-stats-api/internal/metrics"
	"vinzhub-stats-api/internal/middleware"
	"vinzhub-stats-api/internal/repository"
	"vinzhub-stats-api/internal/router"
	"vinzhub-stats-api/internal/service"
)

// startupTimeout bounds connecting to each backend.
const startupTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg := config.MustLoad()

	log := logger.New(cfg.App.LogLevel, cfg.App.LogPretty)
	log.Info().
		Str("environment", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting stats API")

	clock := quartz.NewReal()

	// Durable store; any failure here means memory-only mode
	durable := openDurable(cfg, clock, log)
	if durable != nil {
		defer durable.Close()
	}

	backends := service.Backends{
		Memory: repository.NewMemoryStore(clock, cfg.Retention.MemoryMaxPoints),
	}
	if durable != nil {
		backends.Durable = durable
	}

	// Shared-config store
	var (
		configStore     repository.ConfigRepository
		configStoreName string
		configStats     handler.StatsProvider
	)
	if cfg.ConfigDB.Type == "mongodb" && cfg.ConfigDB.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		mongoRepo, err := repository.NewMongoConfigRepository(ctx, cfg.ConfigDB.MongoURI,
			cfg.ConfigDB.MongoDatabase, cfg.ConfigDB.MongoCollection, log)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("MongoDB config store unavailable, configs use the durable store or memory")
		} else {
			defer mongoRepo.Close()
			configStore, configStoreName, configStats = mongoRepo, "mongodb", mongoRepo
			log.Info().Msg("MongoDB config store initialized")
		}
	}
	if configStore == nil && durable != nil {
		configStore, configStoreName = durable, durable.Name()
	}

	// Cache
	var c cache.Cache
	if cfg.Cache.Type == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
		} else {
			c = redisCache
			log.Info().Str("addr", cfg.Cache.RedisAddress()).Msg("Redis cache initialized")
		}
	}
	if c == nil {
		c = cache.NewMemoryCache(clock, cache.DefaultCleanupInterval)
	}
	defer c.Close()

	m := metrics.New(cfg.App.MetricsEnabled)

	// Initialize services
	telemetry := service.NewTelemetryService(backends, c, clock, m, log, service.TelemetryConfig{
		PublicIDTTL:    cfg.Cache.PublicIDTTL,
		LeaderboardTTL: cfg.Cache.LeaderboardTTL,
	})
	players := service.NewPlayerService(backends, c, clock, m, log, cfg.Cache.PublicIDTTL)
	configs := service.NewConfigService(configStore, configStoreName, backends.Memory, clock, m, log)
	controls := service.NewControlService(clock)

	retention := service.NewRetentionScheduler(backends, clock, log, service.RetentionConfig{
		Interval: cfg.Retention.Interval,
	})
	retention.Start()
	defer retention.Stop()

	// Create router
	routerCfg := router.Config{
		Handler:          handler.New(backends, clock, cfg.App.Name, cfg.App.Version),
		TelemetryHandler: handler.NewTelemetryHandler(telemetry, clock, log),
		PlayerHandler:    handler.NewPlayerHandler(players, telemetry, log),
		ConfigHandler:    handler.NewConfigHandler(configs, log),
		ControlHandler:   handler.NewControlHandler(controls),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Backends:        backends,
			Cache:           c,
			Controls:        controls,
			ConfigStore:     configStats,
			ConfigStoreName: configStoreName,
			Clock:           clock,
		}),
		Auth: middleware.NewAuth(middleware.AuthConfig{
			WriteKey:          cfg.Auth.WriteKey,
			ReadKey:           cfg.Auth.ReadKey,
			LoginKey:          cfg.App.LoginKey,
			ReadKeyConfigured: cfg.Auth.ReadKeyConfigured(),
		}),
		IngestRateLimit: cfg.Server.IngestRateLimit,
		Logger:          log,
		Clock:           clock,
	}
	if cfg.App.MetricsEnabled {
		routerCfg.Metrics = m
	}
	if !cfg.Auth.ReadKeyConfigured() {
		log.Warn().Msg("READ_KEY not configured, reads are open and /api/players is disabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router.New(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", backends.PrimaryMode()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

// openDurable connects the configured SQL backend. It returns nil when the
// database is not configured or unreachable.
func openDurable(cfg *config.Config, clock quartz.Clock, log zerolog.Logger) *repository.SQLStore {
	if !cfg.Database.Enabled() {
		log.Warn().Str("db_type", cfg.Database.Type).Msg("database not configured, running in memory-only mode")
		return nil
	}

	opts := repository.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		QueryTimeout: cfg.Database.QueryTimeout,
		Clock:        clock,
		Logger:       log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var (
		store *repository.SQLStore
		err   error
	)
	switch cfg.Database.Type {
	case "sqlite":
		store, err = repository.OpenSQLite(ctx, cfg.Database.Path, opts)
	case "postgres":
		store, err = repository.OpenPostgres(ctx, cfg.Database.PostgresDSN(), opts)
	default:
		store, err = repository.OpenMySQL(ctx, cfg.Database.MySQLDSN(), opts)
	}
	if err != nil {
		log.Error().Err(err).Str("db_type", cfg.Database.Type).Msg("database unavailable, running in memory-only mode")
		return nil
	}

	log.Info().Str("db_type", store.Name()).Msg("durable store initialized")
	return store
}
