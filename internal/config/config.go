// ABOUTME: Configuration loading and parsing for vibecode-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MinSecretLength is the minimum accepted length of auth.jwt_secret in bytes.
const MinSecretLength = 32

// Default redirect targets registered with the OAuth apps.
const (
	DefaultGitHubRedirectURI = "https://vibecode.gigahard.ai/github-callback"
	DefaultGoogleRedirectURI = "https://vibecode.gigahard.ai/auth/google/callback"
)

// Config represents the complete vibecode-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Auth       AuthConfig       `yaml:"auth" toml:"auth"`
	OAuth      OAuthConfig      `yaml:"oauth" toml:"oauth"`
	Proxy      ProxyConfig      `yaml:"proxy" toml:"proxy"`
	CORS       CORSConfig       `yaml:"cors" toml:"cors"`
	Containers ContainersConfig `yaml:"containers" toml:"containers"`
	Projects   ProjectsConfig   `yaml:"projects" toml:"projects"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" toml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds JWT and local login configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"`

	// DevLogin accepts any non-empty username/password on /api/auth/login.
	DevLogin bool `yaml:"dev_login" toml:"dev_login"`

	// LocalUsers maps username to bcrypt password hash.
	LocalUsers map[string]string `yaml:"local_users" toml:"local_users"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// OAuthConfig holds the external identity providers
type OAuthConfig struct {
	// FrontendURL is where the Google redirect flow lands after issuing a token.
	FrontendURL string         `yaml:"frontend_url" toml:"frontend_url"`
	GitHub      ProviderConfig `yaml:"github" toml:"github"`
	Google      ProviderConfig `yaml:"google" toml:"google"`
}

// ProviderConfig holds one OAuth application's credentials
type ProviderConfig struct {
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri" toml:"redirect_uri"`
}

// Enabled reports whether both client credentials are present.
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// ProxyConfig holds upstream API configuration
type ProxyConfig struct {
	UpstreamURL string        `yaml:"upstream_url" toml:"upstream_url"`
	Timeout     time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// ContainersConfig holds defaults for simulated project containers
type ContainersConfig struct {
	Images      map[string]string `yaml:"images" toml:"images"`
	Port        int               `yaml:"port" toml:"port"`
	CPULimit    string            `yaml:"cpu_limit" toml:"cpu_limit"`
	MemoryLimit string            `yaml:"memory_limit" toml:"memory_limit"`
	StorageSize string            `yaml:"storage_size" toml:"storage_size"`
	LogLines    int               `yaml:"log_lines" toml:"log_lines"`
}

// ProjectsConfig holds project service settings
type ProjectsConfig struct {
	SeedDemo bool `yaml:"seed_demo" toml:"seed_demo"`
}

// RateLimitConfig throttles the auth endpoints per client IP
type RateLimitConfig struct {
	AuthPerMinute int `yaml:"auth_per_minute" toml:"auth_per_minute"`
	Burst         int `yaml:"burst" toml:"burst"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty means clients are keyed by their connection address only.
	TrustedProxies []string `yaml:"trusted_proxies" toml:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. A bare IP becomes a single-host prefix.
func (r RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, entry := range r.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{HTTPAddr: "0.0.0.0:5000"},
		Database: DatabaseConfig{Path: "vibecode.db"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		OAuth: OAuthConfig{
			FrontendURL: "/",
			GitHub:      ProviderConfig{RedirectURI: DefaultGitHubRedirectURI},
			Google:      ProviderConfig{RedirectURI: DefaultGoogleRedirectURI},
		},
		Proxy: ProxyConfig{Timeout: 30 * time.Second},
		CORS:  CORSConfig{AllowedOrigins: []string{"*"}},
		Containers: ContainersConfig{
			Images: map[string]string{
				"python":     "python:3.9-slim",
				"javascript": "node:14-alpine",
				"go":         "golang:1.17-alpine",
				"java":       "openjdk:11-jdk-slim",
			},
			Port:        8000,
			CPULimit:    "500m",
			MemoryLimit: "512Mi",
			StorageSize: "1Gi",
			LogLines:    500,
		},
		RateLimit: RateLimitConfig{AuthPerMinute: 30, Burst: 10},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyFallbacks(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyFallbacks restores defaults for fields a config file blanked out.
func applyFallbacks(cfg *Config) {
	def := Default()
	if cfg.OAuth.GitHub.RedirectURI == "" {
		cfg.OAuth.GitHub.RedirectURI = def.OAuth.GitHub.RedirectURI
	}
	if cfg.OAuth.Google.RedirectURI == "" {
		cfg.OAuth.Google.RedirectURI = def.OAuth.Google.RedirectURI
	}
	if cfg.OAuth.FrontendURL == "" {
		cfg.OAuth.FrontendURL = def.OAuth.FrontendURL
	}
	if cfg.Containers.Port == 0 {
		cfg.Containers.Port = def.Containers.Port
	}
	if cfg.Containers.LogLines <= 0 {
		cfg.Containers.LogLines = def.Containers.LogLines
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = def.CORS.AllowedOrigins
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Proxy.UpstreamURL != "" &&
		!strings.HasPrefix(c.Proxy.UpstreamURL, "http://") &&
		!strings.HasPrefix(c.Proxy.UpstreamURL, "https://") {
		return fmt.Errorf("proxy.upstream_url must be an http(s) URL")
	}

	if _, err := c.RateLimit.TrustedPrefixes(); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Proxy.TimeoutRaw != "" {
		cfg.Proxy.Timeout, err = time.ParseDuration(cfg.Proxy.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing proxy timeout %q: %w", cfg.Proxy.TimeoutRaw, err)
		}
	}

	return nil
}
