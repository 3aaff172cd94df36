// ABOUTME: Google OAuth provider: code exchange plus the v2 userinfo lookup
// ABOUTME: Maps id, name, email, and picture onto the session user

package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/config"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider signs users in with a Google OAuth client.
type GoogleProvider struct {
	cfg         *oauth2.Config
	opts        options
	userInfoURL string
}

// NewGoogle creates a Google provider from its config section.
func NewGoogle(pc config.ProviderConfig, opts ...Option) *GoogleProvider {
	o := buildOptions(opts)

	endpoint := google.Endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := googleUserInfoURL
	if o.apiBase != "" {
		userInfoURL = o.apiBase + "/oauth2/v2/userinfo"
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURI,
			Scopes:       []string{"profile", "email"},
			Endpoint:     endpoint,
		},
		opts:        o,
		userInfoURL: userInfoURL,
	}
}

func (p *GoogleProvider) Name() string        { return ProviderGoogle }
func (p *GoogleProvider) DisplayName() string { return "Google" }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades the code for a token and loads the Google profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*auth.User, error) {
	_, client, err := exchange(ctx, p.cfg, p.opts.httpClient, code)
	if err != nil {
		return nil, err
	}

	var gu googleUser
	if err := getJSON(ctx, client, p.userInfoURL, nil, &gu); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	if gu.ID == "" {
		return nil, fmt.Errorf("%w: userinfo has no id", ErrProfile)
	}

	return &auth.User{
		ID:        ProviderGoogle + ":" + gu.ID,
		Username:  gu.Name,
		Email:     gu.Email,
		FullName:  gu.Name,
		AvatarURL: gu.Picture,
		Provider:  ProviderGoogle,
	}, nil
}
