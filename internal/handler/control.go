package handler

import (
	"net/http"

	"github.com/goccy/go-json"

	"vinzhub-stats-api/internal/middleware"
	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// maxControlBytes bounds a state or command body.
const maxControlBytes = 16 * 1024

// ControlHandler serves the per-user control mailbox.
type ControlHandler struct {
	controls *service.ControlService
}

// NewControlHandler creates a new control handler.
func NewControlHandler(controls *service.ControlService) *ControlHandler {
	return &ControlHandler{controls: controls}
}

// StateResponse is the body of the control state endpoints.
type StateResponse struct {
	OK        bool            `json:"ok"`
	State     json.RawMessage `json:"state"`
	UpdatedAt int64           `json:"updated_at"`
}

// CommandsResponse is the body of GET /api/controls/commands.
type CommandsResponse struct {
	OK       bool            `json:"ok"`
	Commands []model.Command `json:"commands"`
}

// CommandResponse is the body of POST /api/controls/commands.
type CommandResponse struct {
	OK      bool          `json:"ok"`
	Command model.Command `json:"command"`
}

// readJSON reads a body that must be valid JSON of any kind.
func readJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := readBody(w, r, maxControlBytes)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, apierror.BadRequest("body must be valid JSON")
	}
	return body, nil
}

// SetState handles POST /api/controls/state
func (h *ControlHandler) SetState(w http.ResponseWriter, r *http.Request) {
	body, err := readJSON(w, r)
	if err != nil {
		response.Error(w, err)
		return
	}

	st := h.controls.SetState(middleware.GetUserKey(r.Context()), body)
	response.OK(w, StateResponse{OK: true, State: st.State, UpdatedAt: st.UpdatedAt})
}

// GetState handles GET /api/controls/state
func (h *ControlHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st, ok := h.controls.State(middleware.GetUserKey(r.Context()))
	if !ok {
		response.OK(w, StateResponse{OK: true, State: json.RawMessage("null")})
		return
	}
	response.OK(w, StateResponse{OK: true, State: st.State, UpdatedAt: st.UpdatedAt})
}

// PushCommand handles POST /api/controls/commands
func (h *ControlHandler) PushCommand(w http.ResponseWriter, r *http.Request) {
	body, err := readJSON(w, r)
	if err != nil {
		response.Error(w, err)
		return
	}

	cmd := h.controls.PushCommand(middleware.GetUserKey(r.Context()), body)
	response.OK(w, CommandResponse{OK: true, Command: cmd})
}

// DrainCommands handles GET /api/controls/commands
func (h *ControlHandler) DrainCommands(w http.ResponseWriter, r *http.Request) {
	cmds := h.controls.DrainCommands(middleware.GetUserKey(r.Context()))
	response.OK(w, CommandsResponse{OK: true, Commands: cmds})
}
