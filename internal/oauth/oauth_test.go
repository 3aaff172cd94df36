// ABOUTME: Tests for GitHub and Google providers and the login service against fake provider servers
// ABOUTME: Covers profile normalization, email fallback, token failures, state nonces, and code replay

package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gigahard/vibecode-gateway/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider serves a token endpoint and the profile APIs both providers use.
type fakeProvider struct {
	server      *httptest.Server
	exchanges   atomic.Int32
	goodCode    string
	emailsFail  bool
	emails      []githubEmail
	githubUser  githubUser
	googleUser  googleUser
	lastSecrets url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{
		goodCode: "good-code",
		githubUser: githubUser{
			ID: 4242, Login: "octocat", Name: "", Email: "public@example.com",
			AvatarURL: "https://avatars.example.com/octocat",
		},
		emails: []githubEmail{
			{Email: "secondary@example.com"},
			{Email: "primary@example.com", Primary: true, Verified: true},
		},
		googleUser: googleUser{
			ID: "1098", Email: "ada@example.com", Name: "Ada Lovelace", Picture: "https://pics.example.com/ada",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		fp.exchanges.Add(1)
		_ = r.ParseForm()
		fp.lastSecrets = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("code") {
		case fp.goodCode:
			_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer"}`))
		case "no-token":
			_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
		case "invalid-grant":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		case "server-error":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server_error"}`))
		default:
			// GitHub answers a bad code with 200 and an error body.
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
		}
	})
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("GET /user", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fp.githubUser)
	}))
	mux.HandleFunc("GET /user/emails", authed(func(w http.ResponseWriter, r *http.Request) {
		if fp.emailsFail {
			http.Error(w, "scope missing", http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(fp.emails)
	}))
	mux.HandleFunc("GET /oauth2/v2/userinfo", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fp.googleUser)
	}))

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) options() []Option {
	return []Option{
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  fp.server.URL + "/authorize",
			TokenURL: fp.server.URL + "/token",
		}),
		WithAPIBase(fp.server.URL),
		WithHTTPClient(fp.server.Client()),
	}
}

var testProviderConfig = config.ProviderConfig{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	RedirectURI:  "https://app.example.com/callback",
}

func TestGitHub_Exchange(t *testing.T) {
	fp := newFakeProvider(t)
	p := NewGitHub(testProviderConfig, testLogger(), fp.options()...)

	user, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "github:4242", user.ID)
	assert.Equal(t, "octocat", user.Username)
	assert.Equal(t, "primary@example.com", user.Email)
	assert.Equal(t, "octocat", user.FullName, "name falls back to login")
	assert.Equal(t, "https://avatars.example.com/octocat", user.AvatarURL)
	assert.Equal(t, ProviderGitHub, user.Provider)

	assert.Equal(t, "client-id", fp.lastSecrets.Get("client_id"))
	assert.Equal(t, "client-secret", fp.lastSecrets.Get("client_secret"))
}

func TestGitHub_EmailFallbacks(t *testing.T) {
	t.Run("first email when none primary", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.emails = []githubEmail{{Email: "first@example.com"}, {Email: "second@example.com"}}
		p := NewGitHub(testProviderConfig, testLogger(), fp.options()...)

		user, err := p.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, "first@example.com", user.Email)
	})

	t.Run("profile email when lookup fails", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.emailsFail = true
		fp.githubUser.Name = "The Octocat"
		p := NewGitHub(testProviderConfig, testLogger(), fp.options()...)

		user, err := p.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, "public@example.com", user.Email)
		assert.Equal(t, "The Octocat", user.FullName)
	})
}

func TestGitHub_BadCode(t *testing.T) {
	fp := newFakeProvider(t)
	p := NewGitHub(testProviderConfig, testLogger(), fp.options()...)

	_, err := p.Exchange(context.Background(), "wrong-code")
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestExchange_ErrorClassification(t *testing.T) {
	fp := newFakeProvider(t)

	tests := []struct {
		name     string
		code     string
		noAccess bool
	}{
		{"error body with 200", "wrong-code", true},
		{"200 without access_token", "no-token", true},
		{"400 invalid_grant", "invalid-grant", false},
		{"500 from token endpoint", "server-error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range []Provider{
				NewGitHub(testProviderConfig, testLogger(), fp.options()...),
				NewGoogle(testProviderConfig, fp.options()...),
			} {
				_, err := p.Exchange(context.Background(), tt.code)
				require.Error(t, err, p.Name())
				assert.Equal(t, tt.noAccess, errors.Is(err, ErrNoAccessToken), p.Name())
			}
		})
	}
}

func TestExchange_UnreachableTokenEndpoint(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	tokenURL := closed.URL + "/token"
	closed.Close()

	p := NewGitHub(testProviderConfig, testLogger(),
		WithEndpoint(oauth2.Endpoint{AuthURL: tokenURL, TokenURL: tokenURL}),
		WithAPIBase(closed.URL),
	)

	_, err := p.Exchange(context.Background(), "good-code")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoAccessToken)
}

func TestGitHub_AuthCodeURL(t *testing.T) {
	fp := newFakeProvider(t)
	p := NewGitHub(testProviderConfig, testLogger(), fp.options()...)

	u, err := url.Parse(p.AuthCodeURL("state-xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "user:email", q.Get("scope"))
	assert.Equal(t, testProviderConfig.RedirectURI, q.Get("redirect_uri"))
}

func TestGoogle_Exchange(t *testing.T) {
	fp := newFakeProvider(t)
	p := NewGoogle(testProviderConfig, fp.options()...)

	user, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "google:1098", user.ID)
	assert.Equal(t, "Ada Lovelace", user.FullName)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "https://pics.example.com/ada", user.AvatarURL)
	assert.Equal(t, ProviderGoogle, user.Provider)

	assert.Equal(t, testProviderConfig.RedirectURI, fp.lastSecrets.Get("redirect_uri"))
}

func TestGoogle_MissingID(t *testing.T) {
	fp := newFakeProvider(t)
	fp.googleUser.ID = ""
	p := NewGoogle(testProviderConfig, fp.options()...)

	_, err := p.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrProfile)
}

func TestService_CodeReplay(t *testing.T) {
	fp := newFakeProvider(t)
	svc := NewService(testLogger(), NewGitHub(testProviderConfig, testLogger(), fp.options()...))
	defer svc.Close()

	_, err := svc.Exchange(context.Background(), "github", "good-code")
	require.NoError(t, err)

	_, err = svc.Exchange(context.Background(), "GitHub", "good-code")
	assert.ErrorIs(t, err, ErrCodeReused)
	assert.Equal(t, int32(1), fp.exchanges.Load(), "replayed code must not reach the provider")
}

func TestService_FailedCodeStaysSpent(t *testing.T) {
	fp := newFakeProvider(t)
	svc := NewService(testLogger(), NewGitHub(testProviderConfig, testLogger(), fp.options()...))
	defer svc.Close()

	_, err := svc.Exchange(context.Background(), "github", "wrong-code")
	assert.ErrorIs(t, err, ErrNoAccessToken)

	_, err = svc.Exchange(context.Background(), "github", "wrong-code")
	assert.ErrorIs(t, err, ErrCodeReused)
}

func TestService_WarnsWhenStatesNearCapacity(t *testing.T) {
	old := stateWarnLevel
	stateWarnLevel = 2
	t.Cleanup(func() { stateWarnLevel = old })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(logger, NewGoogle(testProviderConfig))
	defer svc.Close()

	_, err := svc.BeginLogin("google", "/")
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "near capacity")

	_, err = svc.BeginLogin("google", "/")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "near capacity")
	assert.Contains(t, buf.String(), "pending=2")
}

func TestService_UnknownProvider(t *testing.T) {
	svc := NewService(testLogger())
	defer svc.Close()

	_, err := svc.Exchange(context.Background(), "gitlab", "code")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = svc.BeginLogin("gitlab", "/")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestService_RedirectFlow(t *testing.T) {
	fp := newFakeProvider(t)
	svc := NewService(testLogger(), NewGoogle(testProviderConfig, fp.options()...))
	defer svc.Close()

	consent, err := svc.BeginLogin("google", "https://app.example.com/done")
	require.NoError(t, err)
	u, err := url.Parse(consent)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	user, returnTo, err := svc.CompleteRedirect(context.Background(), "google", state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "google:1098", user.ID)
	assert.Equal(t, "https://app.example.com/done", returnTo)

	_, _, err = svc.CompleteRedirect(context.Background(), "google", state, "good-code")
	assert.True(t, errors.Is(err, ErrInvalidState), "state is single-use")
}

func TestNewServiceFromConfig(t *testing.T) {
	cfg := config.OAuthConfig{GitHub: testProviderConfig}
	svc := NewServiceFromConfig(cfg, testLogger())
	defer svc.Close()

	assert.Equal(t, []string{"github"}, svc.Names())
	_, ok := svc.Provider("google")
	assert.False(t, ok)
}
