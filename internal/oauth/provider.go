// ABOUTME: OAuth provider abstraction and shared HTTP helpers for profile lookups
// ABOUTME: Each provider exchanges an authorization code for a normalized auth.User

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/gigahard/vibecode-gateway/internal/auth"
)

// Provider names used in routes and in the user's provider claim.
const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

var (
	// ErrUnknownProvider is returned for a provider that is not configured.
	ErrUnknownProvider = errors.New("unknown oauth provider")
	// ErrNoAccessToken is returned when the token endpoint answers 2xx without an access token.
	// GitHub reports a bad or expired code this way.
	ErrNoAccessToken = errors.New("failed to get access token")
	// ErrProfile is returned when the user profile cannot be fetched after a successful exchange.
	ErrProfile = errors.New("failed to fetch user profile")
	// ErrCodeReused is returned when the same authorization code is presented twice.
	ErrCodeReused = errors.New("authorization code already used")
	// ErrInvalidState is returned when a redirect callback carries an unknown or spent state.
	ErrInvalidState = errors.New("invalid oauth state")
)

// Provider exchanges authorization codes with one identity provider.
type Provider interface {
	// Name returns the short provider name ("github", "google").
	Name() string
	// DisplayName returns the name used in user-facing messages ("GitHub").
	DisplayName() string
	// AuthCodeURL returns the provider consent URL carrying state.
	AuthCodeURL(state string) string
	// Exchange trades a code for the signed-in user's profile.
	Exchange(ctx context.Context, code string) (*auth.User, error)
}

// Option customizes a provider. Tests use it to point at local servers.
type Option func(*options)

type options struct {
	endpoint   *oauth2.Endpoint
	apiBase    string
	httpClient *http.Client
}

// WithEndpoint overrides the provider's authorize/token endpoint.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(o *options) { o.endpoint = &e }
}

// WithAPIBase overrides the base URL used for profile lookups.
func WithAPIBase(base string) Option {
	return func(o *options) { o.apiBase = base }
}

// WithHTTPClient sets the client used for token exchange and profile lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	return o
}

// exchange runs the code exchange with the configured HTTP client.
func exchange(ctx context.Context, cfg *oauth2.Config, client *http.Client, code string, extra ...oauth2.AuthCodeOption) (*oauth2.Token, *http.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	tok, err := cfg.Exchange(ctx, code, extra...)
	if err != nil {
		if missingAccessToken(err) {
			return nil, nil, fmt.Errorf("%w: %v", ErrNoAccessToken, err)
		}
		return nil, nil, fmt.Errorf("token exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, nil, ErrNoAccessToken
	}
	return tok, cfg.Client(ctx, tok), nil
}

// missingAccessToken reports whether err came from a 2xx token response that
// carried no access token. Transport errors and non-2xx statuses do not count.
func missingAccessToken(err error) bool {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		return rErr.Response != nil && rErr.Response.StatusCode >= 200 && rErr.Response.StatusCode < 300
	}
	// x/oauth2 reports a 2xx body without access_token as a plain error.
	return strings.Contains(err.Error(), "missing access_token")
}

// getJSON fetches url with an authorized client and decodes the JSON body into v.
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
