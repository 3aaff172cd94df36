// ABOUTME: HTTP handlers for /api/projects backed by the project service
// ABOUTME: Renders description_html on every response and hides inaccessible projects as 404

package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/respond"
	"github.com/gigahard/vibecode-gateway/internal/store"
)

// ProjectResponse is the JSON form of a project.
type ProjectResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	DescriptionHTML string   `json:"description_html"`
	Language        string   `json:"language"`
	RepositoryURL   string   `json:"repository_url,omitempty"`
	OwnerID         string   `json:"owner_id"`
	Members         []string `json:"members"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// Handler serves the project endpoints.
type Handler struct {
	svc      *Service
	renderer *Renderer
	logger   *slog.Logger
}

// NewHandler creates the project HTTP handler.
func NewHandler(svc *Service, renderer *Renderer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, renderer: renderer, logger: logger.With("component", "projects-http")}
}

// Register mounts the routes on mux. requireUser guards every route.
func (h *Handler) Register(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/projects", requireUser(http.HandlerFunc(h.handleList)))
	mux.Handle("POST /api/projects", requireUser(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /api/projects/{id}", requireUser(http.HandlerFunc(h.handleGet)))
	mux.Handle("PUT /api/projects/{id}", requireUser(http.HandlerFunc(h.handleUpdate)))
	mux.Handle("DELETE /api/projects/{id}", requireUser(http.HandlerFunc(h.handleDelete)))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	list, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, "listing projects", err)
		return
	}

	out := make([]ProjectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, h.toResponse(p))
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var in CreateInput
	if err := respond.DecodeJSON(r, &in); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), user.ID, in)
	if err != nil {
		h.internalError(w, "creating project", err)
		return
	}
	respond.JSON(w, http.StatusCreated, h.toResponse(p))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	p, err := h.svc.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "getting project", err)
		return
	}
	respond.JSON(w, http.StatusOK, h.toResponse(p))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var in UpdateInput
	if err := respond.DecodeJSON(r, &in); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.svc.Update(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		h.writeServiceError(w, "updating project", err)
		return
	}
	respond.JSON(w, http.StatusOK, h.toResponse(p))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		h.writeServiceError(w, "deleting project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "Project not found")
		return
	}
	h.internalError(w, op, err)
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", "error", err)
	respond.Error(w, http.StatusInternalServerError, "Internal server error")
}

func (h *Handler) toResponse(p *store.Project) ProjectResponse {
	return ProjectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		DescriptionHTML: h.renderer.Render(p.Description),
		Language:        p.Language,
		RepositoryURL:   p.RepositoryURL,
		OwnerID:         p.OwnerID,
		Members:         p.Members,
		Tags:            p.Tags,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
