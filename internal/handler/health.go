package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/coder/quartz"

	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/response"
)

// readyPingTimeout bounds the durable ping of the readiness check.
const readyPingTimeout = 2 * time.Second

// Handler contains the health endpoints and their dependencies.
type Handler struct {
	backends  service.Backends
	clock     quartz.Clock
	service   string
	version   string
	startTime time.Time
}

// New creates a new health handler.
func New(backends service.Backends, clock quartz.Clock, serviceName, version string) *Handler {
	return &Handler{
		backends:  backends,
		clock:     clock,
		service:   serviceName,
		version:   version,
		startTime: clock.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		OK:        true,
		Status:    "healthy",
		Mode:      h.backends.PrimaryMode(),
		Timestamp: h.clock.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready handles GET /ready. A failing database degrades the service to
// memory but does not make it unready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := []Check{{Name: "api", Status: "ok"}}
	status := "ok"

	if durable := h.backends.Durable; durable != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
		defer cancel()

		check := Check{Name: durable.Name(), Status: "ok"}
		if err := durable.Ping(ctx); err != nil {
			check.Status = "error"
			check.Error = err.Error()
			status = "degraded"
		}
		checks = append(checks, check)
	}

	response.OK(w, ReadyResponse{
		Ready:     true,
		Status:    status,
		Timestamp: h.clock.Now().UTC(),
		Checks:    checks,
	})
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Storage  string  `json:"storage"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for bot monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Mode          string       `json:"mode"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status - unified health check for bot monitoring
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	storage := "memory"
	if h.backends.DurableEnabled() {
		storage = "durable"
	}

	resp := StatusResponse{
		Service:       h.service,
		Status:        "ok",
		Mode:          h.backends.PrimaryMode(),
		Timestamp:     h.clock.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(h.clock.Since(h.startTime).Seconds()),
		Checks: StatusChecks{
			Storage:  storage,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
