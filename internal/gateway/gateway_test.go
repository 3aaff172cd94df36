// ABOUTME: Tests for gateway composition, routing, middleware, and server lifecycle
// ABOUTME: Drives the full handler stack with httptest and a real in-memory store

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/config"
	"github.com/gigahard/vibecode-gateway/internal/oauth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testConfig creates a minimal config backed by an in-memory database.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = ":memory:"
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.DevLogin = true
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg *config.Config, opts ...Option) *Gateway {
	t.Helper()
	gw, err := New(cfg, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw
}

func serve(gw *Gateway, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func (g *Gateway) testToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := g.issuer.Issue(&auth.User{ID: userID, Username: userID, Email: userID + "@example.com", FullName: userID, Provider: "local"})
	require.NoError(t, err)
	return tok
}

func TestNew_RequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := New(cfg, testLogger())
	assert.ErrorIs(t, err, auth.ErrShortSecret)
}

func TestNew_RejectsBadUpstream(t *testing.T) {
	cfg := testConfig(t)
	cfg.Proxy.UpstreamURL = "ftp://nope"

	_, err := New(cfg, testLogger())
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	rec = serve(gw, httptest.NewRequest(http.MethodGet, "/api/fastapi/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	require.NoError(t, gw.store.Close())

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
}

func TestTestEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	rec := serve(gw, httptest.NewRequest(http.MethodPatch, "/api/test?x=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Test endpoint successful", body["message"])
	assert.Equal(t, "PATCH", body["method"])
	assert.Equal(t, "/api/test?x=1", body["url"])
}

func TestCORS(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := serve(gw, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = serve(gw, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProjectsAndContainersRequireToken(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	for _, path := range []string{"/api/projects", "/api/containers/p1/status"} {
		rec := serve(gw, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"No token provided"}`, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := serve(gw, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, rec.Body.String())
}

func TestProjectAndContainerFlow(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	tok := gw.testToken(t, "local:alice")

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":"Flow","language":"Go"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := serve(gw, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var project struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))

	req = httptest.NewRequest(http.MethodPost, "/api/containers/"+project.ID+"/action", strings.NewReader(`{"action":"start"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = serve(gw, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"Running"`)
	assert.Contains(t, rec.Body.String(), "golang:1.17-alpine")

	req = httptest.NewRequest(http.MethodDelete, "/api/projects/"+project.ID, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = serve(gw, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/containers/"+project.ID+"/status", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = serve(gw, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnmatchedAPIWithoutUpstream(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyReceivesIdentity(t *testing.T) {
	var gotUser, gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-ID")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Proxy.UpstreamURL = upstream.URL
	gw := newTestGateway(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/files/save", nil)
	req.Header.Set("Authorization", "Bearer "+gw.testToken(t, "github:7"))
	rec := serve(gw, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "github:7", gotUser)
	assert.Empty(t, gotAuth)
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.AuthPerMinute = 1
	cfg.RateLimit.Burst = 2
	gw := newTestGateway(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"a","password":"b"}`))
		req.RemoteAddr = "203.0.113.9:4000"
		codes = append(codes, serve(gw, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"a","password":"b"}`))
	req.RemoteAddr = "198.51.100.1:4000"
	assert.Equal(t, http.StatusOK, serve(gw, req).Code)
}

func TestRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.AuthPerMinute = 1
	cfg.RateLimit.Burst = 1
	gw := newTestGateway(t, cfg)

	throttled := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"a","password":"b"}`))
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		if serve(gw, req).Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	assert.Equal(t, 19, throttled)

	gw.limiter.mu.Lock()
	defer gw.limiter.mu.Unlock()
	assert.Len(t, gw.limiter.clients, 1)
}

func TestRateLimit_TrustedProxyForwardsClientAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.AuthPerMinute = 1
	cfg.RateLimit.Burst = 1
	cfg.RateLimit.TrustedProxies = []string{"10.0.0.0/8"}
	gw := newTestGateway(t, cfg)

	login := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"a","password":"b"}`))
		req.RemoteAddr = "10.0.0.2:4000"
		req.Header.Set("X-Forwarded-For", xff)
		return serve(gw, req).Code
	}

	assert.Equal(t, http.StatusOK, login("198.51.100.1"))
	assert.Equal(t, http.StatusOK, login("198.51.100.2"), "distinct clients behind the proxy get their own bucket")
	assert.Equal(t, http.StatusTooManyRequests, login("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("192.0.2.77, 198.51.100.1"), "client-supplied hops are ignored")
}

func TestClientResolver(t *testing.T) {
	c := &clientResolver{trusted: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{"untrusted peer", "203.0.113.9:1", []string{"1.2.3.4"}, "203.0.113.9"},
		{"trusted peer without header", "10.0.0.2:1", nil, "10.0.0.2"},
		{"nearest untrusted hop", "10.0.0.2:1", []string{"6.6.6.6, 198.51.100.1, 10.0.0.9"}, "198.51.100.1"},
		{"repeated headers", "10.0.0.2:1", []string{"6.6.6.6", "198.51.100.1"}, "198.51.100.1"},
		{"all hops trusted", "10.0.0.2:1", []string{"10.1.1.1"}, "10.1.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, c.ip(req))
		})
	}
}

func TestRunAndShutdown(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestWithProviders(t *testing.T) {
	p := &stubProvider{name: "github", display: "GitHub"}
	gw := newTestGateway(t, testConfig(t), WithProviders(p))

	names := gw.oauth.Names()
	assert.Equal(t, []string{"github"}, names)
	_, ok := gw.oauth.Provider("google")
	assert.False(t, ok)
}

// stubProvider is an in-process OAuth provider.
type stubProvider struct {
	name    string
	display string
	users   map[string]*auth.User
	err     error
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) DisplayName() string { return s.display }
func (s *stubProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (s *stubProvider) Exchange(_ context.Context, code string) (*auth.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[code]
	if !ok {
		return nil, errors.Join(oauth.ErrNoAccessToken, errors.New("bad_verification_code"))
	}
	return u, nil
}
