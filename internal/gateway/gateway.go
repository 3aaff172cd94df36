// ABOUTME: Gateway orchestrator wiring config, store, auth, and HTTP services together
// ABOUTME: Owns the HTTP server lifecycle: listen, serve until canceled, graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/config"
	"github.com/gigahard/vibecode-gateway/internal/containers"
	"github.com/gigahard/vibecode-gateway/internal/oauth"
	"github.com/gigahard/vibecode-gateway/internal/projects"
	"github.com/gigahard/vibecode-gateway/internal/proxy"
	"github.com/gigahard/vibecode-gateway/internal/store"
)

// shutdownTimeout bounds graceful shutdown after the run context ends.
const shutdownTimeout = 5 * time.Second

// Gateway serves the vibecode HTTP API.
type Gateway struct {
	config     *config.Config
	store      store.Store
	issuer     *auth.Issuer
	local      *auth.LocalAccounts
	oauth      *oauth.Service
	projects   *projects.Service
	containers *containers.Manager
	proxy      *proxy.Proxy
	limiter    *ipRateLimiter
	clients    *clientResolver
	httpServer *http.Server
	logger     *slog.Logger

	// serverID identifies this gateway instance in logs
	serverID string
}

// Option customizes a Gateway at construction.
type Option func(*options)

type options struct {
	providers []oauth.Provider
}

// WithProviders replaces the config-derived OAuth providers.
func WithProviders(providers ...oauth.Provider) Option {
	return func(o *options) { o.providers = providers }
}

// initStore creates the store, letting VIBECODE_DB_PATH override the config.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("VIBECODE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	issuer, err := auth.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	trusted, err := cfg.RateLimit.TrustedPrefixes()
	if err != nil {
		return nil, err
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	var oauthSvc *oauth.Service
	if o.providers != nil {
		oauthSvc = oauth.NewService(logger, o.providers...)
	} else {
		oauthSvc = oauth.NewServiceFromConfig(cfg.OAuth, logger)
	}

	containerMgr := containers.NewManager(s, cfg.Containers, logger)
	projectSvc := projects.NewService(s, containerMgr, cfg.Projects.SeedDemo, logger)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		issuer:     issuer,
		local:      auth.NewLocalAccounts(cfg.Auth.LocalUsers, cfg.Auth.DevLogin),
		oauth:      oauthSvc,
		projects:   projectSvc,
		containers: containerMgr,
		limiter:    newIPRateLimiter(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.Burst),
		clients:    &clientResolver{trusted: trusted},
		logger:     logger.With("component", "gateway"),
		serverID:   generateServerID(),
	}

	if cfg.Proxy.UpstreamURL != "" {
		p, err := proxy.New(cfg.Proxy.UpstreamURL, cfg.Proxy.Timeout, logger)
		if err != nil {
			_ = s.Close()
			oauthSvc.Close()
			return nil, fmt.Errorf("creating proxy: %w", err)
		}
		gw.proxy = p
	}

	mux := http.NewServeMux()
	gw.registerRoutes(mux, logger)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.wrapMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	upstream := "(none)"
	if gw.proxy != nil {
		upstream = gw.proxy.Upstream()
	}
	gw.logger.Info("gateway configured",
		"server_id", gw.serverID,
		"oauth_providers", oauthSvc.Names(),
		"local_login", gw.local.Enabled(),
		"proxy_upstream", upstream,
	)
	return gw, nil
}

// Handler returns the root HTTP handler including middleware.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run listens on the configured address and serves until ctx is canceled.
// Returns nil on graceful shutdown, or the first server error.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown uses a fresh context since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases the store and caches.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())
	g.oauth.Close()
	g.limiter.Close()

	return errors.Join(errs...)
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("vibecode-gateway-%d", time.Now().UnixNano()%1000000)
}
