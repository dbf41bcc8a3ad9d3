package handler

import (
	"net/http"
	"strconv"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/middleware"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// TelemetryHandler serves ingest, stats, history and leaderboard.
type TelemetryHandler struct {
	telemetry *service.TelemetryService
	clock     quartz.Clock
	log       zerolog.Logger
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(telemetry *service.TelemetryService, clock quartz.Clock, log zerolog.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		telemetry: telemetry,
		clock:     clock,
		log:       log.With().Str("component", "TelemetryHandler").Logger(),
	}
}

// Ingest handles POST /api/ingest
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxIngestBytes)
	if err != nil {
		response.Error(w, err)
		return
	}
	fields, err := decodeObject(body)
	if err != nil {
		response.Error(w, err)
		return
	}

	batch := model.ParseBatch(fields, h.clock.Now().Unix())
	res, err := h.telemetry.Ingest(r.Context(), middleware.GetUserKey(r.Context()), batch)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	response.OK(w, response.Ack{OK: true, Mode: res.Mode})
}

type statsQuery struct {
	Period string `query:"period" validate:"omitempty,max=16"`
}

// Stats handles GET /api/stats
func (h *TelemetryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := statsQuery{Period: r.URL.Query().Get("period")}
	if err := validateStruct(q); err != nil {
		response.Error(w, err)
		return
	}

	stats, err := h.telemetry.Stats(r.Context(), middleware.GetUserKey(r.Context()), q.Period)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	response.OK(w, stats)
}

type historyQuery struct {
	Date string `query:"date" validate:"required,datetime=2006-01-02"`
}

// History handles GET /api/history
func (h *TelemetryHandler) History(w http.ResponseWriter, r *http.Request) {
	q := historyQuery{Date: r.URL.Query().Get("date")}
	if err := validateStruct(q); err != nil {
		response.Error(w, err)
		return
	}

	history, err := h.telemetry.History(r.Context(), middleware.GetUserKey(r.Context()), q.Date)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	response.OK(w, history)
}

type leaderboardQuery struct {
	Metric string `query:"metric" validate:"omitempty,oneof=honey pollen"`
	Limit  string `query:"limit" validate:"omitempty,numeric"`
}

// LeaderboardResponse is the body of GET /api/leaderboard.
type LeaderboardResponse struct {
	OK      bool                     `json:"ok"`
	Mode    string                   `json:"mode"`
	Metric  model.Metric             `json:"metric"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

// Leaderboard handles GET /api/leaderboard
func (h *TelemetryHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := leaderboardQuery{
		Metric: r.URL.Query().Get("metric"),
		Limit:  r.URL.Query().Get("limit"),
	}
	if err := validateStruct(q); err != nil {
		response.Error(w, err)
		return
	}

	limit := 0
	if q.Limit != "" {
		n, err := strconv.Atoi(q.Limit)
		if err != nil {
			response.Error(w, apierror.ValidationError("invalid request", apierror.FieldError{Field: "limit", Message: "expected an integer"}))
			return
		}
		limit = n
	}

	metric := model.Metric(q.Metric)
	if metric == "" {
		metric = model.MetricHoney
	}

	entries, res, err := h.telemetry.Leaderboard(r.Context(), metric, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	response.OK(w, LeaderboardResponse{
		OK:      true,
		Mode:    res.Mode,
		Metric:  metric,
		Entries: entries,
	})
}
