package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/coder/quartz"

	"vinzhub-stats-api/internal/cache"
	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/response"
)

// StatsProvider is any backend that can describe itself.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminConfig holds the dependencies of the admin handler.
type AdminConfig struct {
	Backends service.Backends
	Cache    cache.Cache
	Controls *service.ControlService
	// ConfigStore is set when shared configs live outside the durable store.
	ConfigStore     StatsProvider
	ConfigStoreName string
	Clock           quartz.Clock
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	cfg       AdminConfig
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		cfg:       cfg,
		startTime: cfg.Clock.Now(),
	}
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	uptime := h.cfg.Clock.Since(h.startTime)
	stats["uptime_seconds"] = int64(uptime.Seconds())
	stats["uptime_human"] = uptime.Round(time.Second).String()
	stats["server_time"] = h.cfg.Clock.Now().UTC().Format(time.RFC3339)
	stats["mode"] = h.cfg.Backends.PrimaryMode()

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Durable store
	if durable := h.cfg.Backends.Durable; durable != nil {
		stats["durable"] = describe(ctx, durable)
	} else {
		stats["durable"] = map[string]interface{}{"status": "not_configured"}
	}

	// Memory store, which holds everything in memory-only mode and the
	// fallback writes otherwise
	stats["memory_store"] = describe(ctx, h.cfg.Backends.Memory)

	if h.cfg.ConfigStore != nil {
		cs := describe(ctx, h.cfg.ConfigStore)
		cs["backend"] = h.cfg.ConfigStoreName
		stats["config_store"] = cs
	}

	stats["cache"] = h.cacheStats(ctx)

	if h.cfg.Controls != nil {
		stats["controls"] = map[string]interface{}{"mailboxes": h.cfg.Controls.Mailboxes()}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

func describe(ctx context.Context, p StatsProvider) map[string]interface{} {
	s, err := p.GetStats(ctx)
	if err != nil {
		return map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}
	out := make(map[string]interface{}, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out["status"] = "connected"
	return out
}

func (h *AdminHandler) cacheStats(ctx context.Context) map[string]interface{} {
	switch c := h.cfg.Cache.(type) {
	case *cache.RedisCache:
		if err := c.Ping(ctx); err != nil {
			return map[string]interface{}{"type": "redis", "status": "error", "error": err.Error()}
		}
		return map[string]interface{}{"type": "redis", "status": "connected"}
	case *cache.MemoryCache:
		return map[string]interface{}{"type": "memory", "status": "ok", "entries": c.Len()}
	}
	return map[string]interface{}{"status": "not_configured"}
}
