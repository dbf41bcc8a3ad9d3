package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/repository"
	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// PlayerHandler serves the online roster and per-player stats.
type PlayerHandler struct {
	players   *service.PlayerService
	telemetry *service.TelemetryService
	log       zerolog.Logger
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(players *service.PlayerService, telemetry *service.TelemetryService, log zerolog.Logger) *PlayerHandler {
	return &PlayerHandler{
		players:   players,
		telemetry: telemetry,
		log:       log.With().Str("component", "PlayerHandler").Logger(),
	}
}

// OnlineResponse is the body of GET /api/players.
type OnlineResponse struct {
	OK      bool                  `json:"ok"`
	Mode    string                `json:"mode"`
	Online  int                   `json:"online"`
	Players []model.PlayerSession `json:"players"`
}

// Online handles GET /api/players
func (h *PlayerHandler) Online(w http.ResponseWriter, r *http.Request) {
	sessions, res := h.players.Online(r.Context())
	response.OK(w, OnlineResponse{
		OK:      true,
		Mode:    res.Mode,
		Online:  len(sessions),
		Players: sessions,
	})
}

type playerStatsQuery struct {
	Period string `query:"period" validate:"omitempty,max=16"`
}

// Stats handles GET /api/player/{publicId}/stats
func (h *PlayerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicId")
	if validate.Var(publicID, "len=16,hexadecimal") != nil {
		response.Error(w, apierror.NotFound("unknown player"))
		return
	}

	q := playerStatsQuery{Period: r.URL.Query().Get("period")}
	if err := validateStruct(q); err != nil {
		response.Error(w, err)
		return
	}

	userKey, err := h.players.Resolve(r.Context(), publicID)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(w, apierror.NotFound("unknown player"))
		return
	}
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	stats, err := h.telemetry.PlayerStats(r.Context(), userKey, publicID, q.Period)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	response.OK(w, stats)
}
