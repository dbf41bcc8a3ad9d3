package handler

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/middleware"
	"vinzhub-stats-api/internal/repository"
	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// ConfigHandler publishes and serves shared configs.
type ConfigHandler struct {
	configs *service.ConfigService
	log     zerolog.Logger
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(configs *service.ConfigService, log zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{
		configs: configs,
		log:     log.With().Str("component", "ConfigHandler").Logger(),
	}
}

type publishRequest struct {
	Key    string          `json:"key"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// PublishResponse is the body of POST /api/configs.
type PublishResponse struct {
	OK   bool   `json:"ok"`
	Mode string `json:"mode"`
	Key  string `json:"key"`
}

// Publish handles POST /api/configs
func (h *ConfigHandler) Publish(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, service.MaxConfigBytes)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req publishRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.Error(w, apierror.BadRequest("body must be a JSON object"))
		return
	}
	if err := validateStruct(req); err != nil {
		response.Error(w, err)
		return
	}
	if !isObject(req.Config) {
		response.Error(w, apierror.ValidationError("invalid request", apierror.FieldError{Field: "config", Message: "must be a JSON object"}))
		return
	}

	cfg, res := h.configs.Publish(r.Context(), middleware.GetUserKey(r.Context()), req.Key, req.Config)
	response.OK(w, PublishResponse{OK: true, Mode: res.Mode, Key: cfg.Key})
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// ConfigResponse is the body of GET /api/configs/{key}.
type ConfigResponse struct {
	OK        bool            `json:"ok"`
	Mode      string          `json:"mode"`
	Key       string          `json:"key"`
	Config    json.RawMessage `json:"config"`
	CreatedAt int64           `json:"created_at"`
}

// Get handles GET /api/configs/{key}
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !service.ValidConfigKey(key) {
		response.Error(w, apierror.NotFound("config not found"))
		return
	}

	cfg, res, err := h.configs.Get(r.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(w, apierror.NotFound("config not found"))
		return
	}
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	response.OK(w, ConfigResponse{
		OK:        true,
		Mode:      res.Mode,
		Key:       cfg.Key,
		Config:    cfg.Payload,
		CreatedAt: cfg.CreatedAt,
	})
}
