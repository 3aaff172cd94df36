// ABOUTME: HTTP route table for the gateway
// ABOUTME: Mounts health, auth, project, container, and proxy routes on one mux

package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/containers"
	"github.com/gigahard/vibecode-gateway/internal/projects"
	"github.com/gigahard/vibecode-gateway/internal/respond"
)

// authPrefixes are the mount points for the auth routes. The second is kept
// for clients built against the older Express paths.
var authPrefixes = []string{"/api/auth", "/api/express/auth"}

func (g *Gateway) registerRoutes(mux *http.ServeMux, logger *slog.Logger) {
	requireUser := auth.RequireUser(g.issuer)
	optionalUser := auth.OptionalUser(g.issuer)

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /api/fastapi/health", g.handleUpstreamHealth)
	mux.HandleFunc("/api/test", g.handleTest)

	for _, prefix := range authPrefixes {
		g.registerAuthRoutes(mux, prefix, requireUser)
	}
	mux.Handle("GET /auth/google/callback", g.rateLimited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.completeRedirect(w, r, "google")
	})))

	projects.NewHandler(g.projects, projects.NewRenderer(), logger).Register(mux, requireUser)
	containers.NewHandler(g.containers, logger).Register(mux, requireUser)

	if g.proxy != nil {
		mux.Handle("/api/", optionalUser(g.proxy))
	} else {
		mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
			respond.Error(w, http.StatusNotFound, "Not found")
		})
	}
}

func (g *Gateway) registerAuthRoutes(mux *http.ServeMux, prefix string, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET "+prefix+"/me", requireUser(http.HandlerFunc(g.handleMe)))
	mux.Handle("POST "+prefix+"/login", g.rateLimited(http.HandlerFunc(g.handleLocalLogin)))
	mux.Handle("GET "+prefix+"/{provider}", g.rateLimited(http.HandlerFunc(g.handleBeginLogin)))
	mux.Handle("GET "+prefix+"/{provider}/callback", g.rateLimited(http.HandlerFunc(g.handleRedirectCallback)))
	mux.Handle("POST "+prefix+"/{provider}/callback", g.rateLimited(http.HandlerFunc(g.handleCodeCallback)))
}

// healthPingTimeout bounds the database check behind /health.
const healthPingTimeout = 2 * time.Second

// handleHealth reports liveness, including whether the database answers.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := g.store.Ping(ctx); err != nil {
		g.logger.Error("health check: database unreachable", "error", err)
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "error",
			"error":     "database unavailable",
			"timestamp": now,
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": now,
	})
}

// handleUpstreamHealth answers the health path the client polls for the API tier.
func (g *Gateway) handleUpstreamHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (g *Gateway) handleTest(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"message":   "Test endpoint successful",
		"method":    r.Method,
		"url":       r.URL.RequestURI(),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
