// ABOUTME: OAuth login service: provider registry, state nonces, and code replay guard
// ABOUTME: Wraps provider exchanges so a spent authorization code never reaches the provider twice

package oauth

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/config"
	"github.com/gigahard/vibecode-gateway/internal/dedupe"
)

const (
	// CodeTTL is how long an exchanged authorization code is remembered.
	CodeTTL = 10 * time.Minute
	// StateTTL is how long an issued state nonce stays valid.
	StateTTL = 10 * time.Minute

	maxTracked = 10000
)

// stateWarnLevel is the pending-state count at which BeginLogin starts warning
// that older nonces are about to be evicted.
var stateWarnLevel = maxTracked * 9 / 10

// Service routes logins to configured providers.
type Service struct {
	providers map[string]Provider
	codes     *dedupe.Cache[struct{}]
	states    *dedupe.Cache[string]
	logger    *slog.Logger
}

// NewService creates a service over the given providers.
func NewService(logger *slog.Logger, providers ...Provider) *Service {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Service{
		providers: m,
		codes:     dedupe.NewSet(CodeTTL, maxTracked),
		states:    dedupe.New[string](StateTTL, maxTracked),
		logger:    logger.With("component", "oauth"),
	}
}

// NewServiceFromConfig registers every provider with a client ID configured.
func NewServiceFromConfig(cfg config.OAuthConfig, logger *slog.Logger, opts ...Option) *Service {
	var providers []Provider
	if cfg.GitHub.Enabled() {
		providers = append(providers, NewGitHub(cfg.GitHub, logger, opts...))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, NewGoogle(cfg.Google, opts...))
	}
	return NewService(logger, providers...)
}

// Close stops the background sweepers.
func (s *Service) Close() {
	s.codes.Close()
	s.states.Close()
}

// Provider looks up a provider by name.
func (s *Service) Provider(name string) (Provider, bool) {
	p, ok := s.providers[strings.ToLower(name)]
	return p, ok
}

// Names returns the configured provider names in sorted order.
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BeginLogin issues a state nonce and returns the provider consent URL.
// returnTo is handed back by CompleteRedirect once the state is consumed.
func (s *Service) BeginLogin(name, returnTo string) (string, error) {
	p, ok := s.Provider(name)
	if !ok {
		return "", ErrUnknownProvider
	}
	state := uuid.NewString()
	s.states.Put(state, returnTo)
	if n := s.states.Len(); n >= stateWarnLevel {
		s.logger.Warn("oauth state cache near capacity, oldest logins will be evicted",
			"pending", n, "capacity", maxTracked)
	}
	return p.AuthCodeURL(state), nil
}

// CompleteRedirect validates the state from a browser redirect and exchanges the code.
func (s *Service) CompleteRedirect(ctx context.Context, name, state, code string) (*auth.User, string, error) {
	if _, ok := s.Provider(name); !ok {
		return nil, "", ErrUnknownProvider
	}
	returnTo, ok := s.states.Take(state)
	if !ok {
		return nil, "", ErrInvalidState
	}
	user, err := s.Exchange(ctx, name, code)
	if err != nil {
		return nil, "", err
	}
	return user, returnTo, nil
}

// Exchange trades an authorization code for a user. A code is accepted once
// per CodeTTL; replays fail with ErrCodeReused without contacting the provider.
func (s *Service) Exchange(ctx context.Context, name, code string) (*auth.User, error) {
	p, ok := s.Provider(name)
	if !ok {
		return nil, ErrUnknownProvider
	}
	if !s.codes.Claim(p.Name() + ":" + code) {
		s.logger.Warn("authorization code replayed", "provider", p.Name())
		return nil, ErrCodeReused
	}

	user, err := p.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("oauth exchange failed", "provider", p.Name(), "error", err)
		return nil, err
	}
	s.logger.Info("oauth login", "provider", p.Name(), "user_id", user.ID, "username", user.Username)
	return user, nil
}
