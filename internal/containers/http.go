// ABOUTME: HTTP handlers for /api/containers/{project_id}/... lifecycle endpoints
// ABOUTME: Wraps every reply in the {success, message, data, logs, timestamp} envelope

package containers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/respond"
)

// Response is the envelope returned by every container endpoint.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Logs      string `json:"logs,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ActionRequest is the body of POST /api/containers/{project_id}/action.
type ActionRequest struct {
	Action    string  `json:"action"`
	TailLines int     `json:"tail_lines,omitempty"`
	Config    *Config `json:"config,omitempty"`
}

// Handler serves the container endpoints.
type Handler struct {
	mgr    *Manager
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates the container HTTP handler.
func NewHandler(mgr *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		mgr:    mgr,
		logger: logger.With("component", "containers-http"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts the routes on mux. requireUser guards every route.
func (h *Handler) Register(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/containers/{project_id}/create", requireUser(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /api/containers/{project_id}/status", requireUser(http.HandlerFunc(h.handleStatus)))
	mux.Handle("POST /api/containers/{project_id}/action", requireUser(http.HandlerFunc(h.handleAction)))
	mux.Handle("GET /api/containers/{project_id}/events", requireUser(http.HandlerFunc(h.handleEvents)))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	projectID, user, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var cfg Config
	if err := respond.DecodeJSON(r, &cfg); err != nil {
		h.write(w, http.StatusBadRequest, false, "Invalid container config", nil, "")
		return
	}
	h.create(w, r, projectID, user.ID, cfg)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	h.status(w, r, projectID)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.mgr.Events(r.Context(), projectID, limit)
	if err != nil {
		h.writeError(w, projectID, err)
		return
	}
	h.write(w, http.StatusOK, true, fmt.Sprintf("Retrieved %d events for project %s", len(events), projectID), events, "")
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	projectID, user, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req ActionRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		h.write(w, http.StatusBadRequest, false, "Invalid request body", nil, "")
		return
	}
	action, err := ParseAction(req.Action)
	if err != nil {
		h.write(w, http.StatusBadRequest, false, InvalidActionMessage(req.Action), nil, "")
		return
	}

	ctx := r.Context()
	switch action {
	case ActionCreate:
		var cfg Config
		if req.Config != nil {
			cfg = *req.Config
		}
		h.create(w, r, projectID, user.ID, cfg)

	case ActionStart:
		st, err := h.mgr.Start(ctx, projectID, user.ID)
		h.writeState(w, projectID, st, err, "Container for project %s started")

	case ActionStop:
		st, err := h.mgr.Stop(ctx, projectID, user.ID)
		h.writeState(w, projectID, st, err, "Container for project %s stopped")

	case ActionRestart:
		st, err := h.mgr.Restart(ctx, projectID, user.ID)
		h.writeState(w, projectID, st, err, "Container for project %s restarted")

	case ActionLogs:
		logs, err := h.mgr.Logs(ctx, projectID, user.ID, req.TailLines)
		if err != nil {
			h.writeError(w, projectID, err)
			return
		}
		h.write(w, http.StatusOK, true, "Retrieved logs for project "+projectID, nil, logs)

	case ActionStatus:
		h.status(w, r, projectID)

	case ActionDelete:
		if err := h.mgr.Delete(ctx, projectID, user.ID); err != nil {
			h.writeError(w, projectID, err)
			return
		}
		h.write(w, http.StatusOK, true, "Deleted container resources for project "+projectID, nil, "")
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, projectID, actorID string, cfg Config) {
	st, err := h.mgr.Create(r.Context(), projectID, actorID, cfg)
	h.writeState(w, projectID, st, err, "Created container resources for project %s")
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, projectID string) {
	st, err := h.mgr.Status(r.Context(), projectID)
	if err != nil {
		h.writeError(w, projectID, err)
		return
	}
	msg := "Retrieved status for project " + projectID
	if !st.Exists {
		msg = "No container resources exist for project " + projectID
	}
	h.write(w, http.StatusOK, true, msg, st, "")
}

// authorize resolves the project ID and checks the caller may use it.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (string, *auth.User, bool) {
	user := auth.MustUserFromContext(r.Context())
	projectID := r.PathValue("project_id")

	if err := h.mgr.Authorize(r.Context(), projectID, user.ID); err != nil {
		h.writeError(w, projectID, err)
		return "", nil, false
	}
	return projectID, user, true
}

func (h *Handler) writeState(w http.ResponseWriter, projectID string, st *State, err error, format string) {
	if err != nil {
		h.writeError(w, projectID, err)
		return
	}
	h.write(w, http.StatusOK, true, fmt.Sprintf(format, projectID), st, "")
}

func (h *Handler) writeError(w http.ResponseWriter, projectID string, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		h.write(w, http.StatusNotFound, false, "Project not found", nil, "")
	case errors.Is(err, ErrNotCreated):
		h.write(w, http.StatusConflict, false, "Container resources don't exist for project "+projectID, nil, "")
	default:
		h.logger.Error("container operation failed", "project_id", projectID, "error", err)
		h.write(w, http.StatusInternalServerError, false, "Internal server error", nil, "")
	}
}

func (h *Handler) write(w http.ResponseWriter, status int, success bool, message string, data any, logs string) {
	respond.JSON(w, status, Response{
		Success:   success,
		Message:   message,
		Data:      data,
		Logs:      logs,
		Timestamp: h.now().Format(time.RFC3339Nano),
	})
}
