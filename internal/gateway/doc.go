// Package gateway composes the vibecode HTTP server.
//
// # Overview
//
// The gateway package owns the store, the token issuer, the OAuth service,
// the project and container services, and the optional upstream proxy, and
// serves them from a single http.ServeMux.
//
// # Routes
//
//   - GET /health, GET /api/fastapi/health - liveness
//   - ANY /api/test - request echo
//   - /api/auth/... and /api/express/auth/... - sign-in:
//     GET /{provider}, GET|POST /{provider}/callback, POST /login, GET /me
//   - GET /auth/google/callback - Google redirect flow alias
//   - /api/projects/... - project CRUD (token required)
//   - /api/containers/{project_id}/... - container lifecycle (token required)
//   - /api/ - everything else is proxied upstream when configured
//
// # Middleware
//
// Requests pass through panic recovery, the access log, and CORS. Sign-in
// routes are also rate limited per client IP.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//	...
//	cancel() // Run shuts down within five seconds and returns
package gateway
