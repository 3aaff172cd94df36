// ABOUTME: Sign-in HTTP handlers: OAuth redirect and code-exchange flows, local login, and /me
// ABOUTME: Every successful sign-in upserts the user, writes an audit entry, and issues a JWT

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/oauth"
	"github.com/gigahard/vibecode-gateway/internal/respond"
	"github.com/gigahard/vibecode-gateway/internal/store"
)

// TokenResponse is returned by the JSON sign-in endpoints.
type TokenResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// CodeRequest is the body of POST /{provider}/callback.
type CodeRequest struct {
	Code string `json:"code"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleBeginLogin redirects the browser to the provider consent page.
func (g *Gateway) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")

	consentURL, err := g.oauth.BeginLogin(name, g.returnTo(r))
	if errors.Is(err, oauth.ErrUnknownProvider) {
		respond.Error(w, http.StatusNotFound, "Unknown provider: "+name)
		return
	}
	if err != nil {
		g.logger.Error("starting oauth login failed", "provider", name, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// handleRedirectCallback completes the browser redirect flow.
func (g *Gateway) handleRedirectCallback(w http.ResponseWriter, r *http.Request) {
	g.completeRedirect(w, r, r.PathValue("provider"))
}

func (g *Gateway) completeRedirect(w http.ResponseWriter, r *http.Request, name string) {
	name = strings.ToLower(name)
	q := r.URL.Query()
	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

	fail := func(reason string, err error) {
		g.logger.Warn("oauth redirect failed", "provider", name, "reason", reason, "error", err)
		if wantsJSON {
			respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication failed", "details": reason})
			return
		}
		http.Redirect(w, r, "/login?error="+url.QueryEscape(name+"_auth_failed"), http.StatusFound)
	}

	if e := q.Get("error"); e != "" {
		fail(e, nil)
		return
	}
	code := q.Get("code")
	if code == "" {
		fail("missing code", nil)
		return
	}

	user, returnTo, err := g.oauth.CompleteRedirect(r.Context(), name, q.Get("state"), code)
	if err != nil {
		fail(err.Error(), err)
		return
	}

	token, err := g.signIn(r.Context(), user)
	if err != nil {
		fail("issuing token", err)
		return
	}

	if wantsJSON {
		respond.JSON(w, http.StatusOK, g.tokenResponse(token, user))
		return
	}
	http.Redirect(w, r, withTokenParams(returnTo, token, name), http.StatusFound)
}

// handleCodeCallback exchanges a code posted by the frontend callback page.
func (g *Gateway) handleCodeCallback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := g.oauth.Provider(name)
	if !ok {
		respond.Error(w, http.StatusNotFound, "Unknown provider: "+name)
		return
	}

	var req CodeRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		respond.Error(w, http.StatusBadRequest, p.DisplayName()+" code is required")
		return
	}

	user, err := g.oauth.Exchange(r.Context(), p.Name(), req.Code)
	switch {
	case errors.Is(err, oauth.ErrCodeReused):
		respond.JSON(w, http.StatusConflict, map[string]string{
			"error":   "Authentication failed",
			"details": "Authorization code has already been used",
		})
		return
	case errors.Is(err, oauth.ErrNoAccessToken):
		respond.JSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Failed to get access token from " + p.DisplayName(),
			"details": err.Error(),
		})
		return
	case err != nil:
		respond.JSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Authentication failed",
			"details": err.Error(),
		})
		return
	}

	token, err := g.signIn(r.Context(), user)
	if err != nil {
		g.logger.Error("issuing token failed", "user_id", user.ID, "error", err)
		respond.JSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Authentication failed",
			"details": "could not issue token",
		})
		return
	}
	respond.JSON(w, http.StatusOK, g.tokenResponse(token, user))
}

func (g *Gateway) tokenResponse(token string, u *auth.User) TokenResponse {
	return TokenResponse{Token: token, User: u, ExpiresIn: int64(g.issuer.TTL().Seconds())}
}

// handleLocalLogin signs in a configured or development account.
func (g *Gateway) handleLocalLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := g.local.Authenticate(req.Username, req.Password)
	if err != nil {
		g.logger.Info("local login rejected", "username", req.Username)
		respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := g.signIn(r.Context(), user)
	if err != nil {
		g.logger.Error("issuing token failed", "user_id", user.ID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, g.tokenResponse(token, user))
}

// handleMe returns the user carried by the bearer token.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]*auth.User{"user": auth.MustUserFromContext(r.Context())})
}

// signIn records the login and issues a token. Store failures are logged
// but do not block the sign-in.
func (g *Gateway) signIn(ctx context.Context, u *auth.User) (string, error) {
	err := g.store.UpsertUser(ctx, &store.User{
		ID:        u.ID,
		Provider:  u.Provider,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	})
	if err != nil {
		g.logger.Warn("saving user failed", "user_id", u.ID, "error", err)
	}

	entry := &store.AuditEntry{
		ActorID:    u.ID,
		Action:     store.AuditLogin,
		TargetType: "user",
		TargetID:   u.ID,
		Detail:     map[string]any{"provider": u.Provider},
	}
	if err := g.store.AppendAuditLog(ctx, entry); err != nil {
		g.logger.Warn("audit append failed", "user_id", u.ID, "error", err)
	}

	return g.issuer.Issue(u)
}

// returnTo picks where the redirect flow lands: a same-site ?redirect= path
// when given, else the configured frontend URL.
func (g *Gateway) returnTo(r *http.Request) string {
	if rd := r.URL.Query().Get("redirect"); strings.HasPrefix(rd, "/") && !strings.HasPrefix(rd, "//") {
		return rd
	}
	return g.config.OAuth.FrontendURL
}

// withTokenParams appends token and source query parameters to target.
func withTokenParams(target, token, source string) string {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("source", source)
	u.RawQuery = q.Encode()
	return u.String()
}
