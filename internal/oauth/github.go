// ABOUTME: GitHub OAuth provider: code exchange plus /user and /user/emails lookups
// ABOUTME: Picks the primary email, falling back to the first listed, and tolerates email lookup failure

package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/config"
)

const githubAPIBase = "https://api.github.com"

// GitHubProvider signs users in with a GitHub OAuth app.
type GitHubProvider struct {
	cfg     *oauth2.Config
	opts    options
	apiBase string
	logger  *slog.Logger
}

// NewGitHub creates a GitHub provider from its config section.
func NewGitHub(pc config.ProviderConfig, logger *slog.Logger, opts ...Option) *GitHubProvider {
	o := buildOptions(opts)

	endpoint := github.Endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	apiBase := githubAPIBase
	if o.apiBase != "" {
		apiBase = o.apiBase
	}

	return &GitHubProvider{
		cfg: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURI,
			Scopes:       []string{"user:email"},
			Endpoint:     endpoint,
		},
		opts:    o,
		apiBase: apiBase,
		logger:  logger,
	}
}

func (p *GitHubProvider) Name() string        { return ProviderGitHub }
func (p *GitHubProvider) DisplayName() string { return "GitHub" }

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades the code for a token and loads the GitHub profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*auth.User, error) {
	_, client, err := exchange(ctx, p.cfg, p.opts.httpClient, code)
	if err != nil {
		return nil, err
	}

	var gu githubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", nil, &gu); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}

	email := gu.Email
	var emails []githubEmail
	if err := getJSON(ctx, client, p.apiBase+"/user/emails", nil, &emails); err != nil {
		p.logger.Warn("fetching github emails failed, continuing without", "login", gu.Login, "error", err)
	} else if picked := primaryEmail(emails); picked != "" {
		email = picked
	}

	fullName := gu.Name
	if fullName == "" {
		fullName = gu.Login
	}

	return &auth.User{
		ID:        ProviderGitHub + ":" + strconv.FormatInt(gu.ID, 10),
		Username:  gu.Login,
		Email:     email,
		FullName:  fullName,
		AvatarURL: gu.AvatarURL,
		Provider:  ProviderGitHub,
	}, nil
}

// primaryEmail returns the address flagged primary, else the first one.
func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}
