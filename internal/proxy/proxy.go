// ABOUTME: Reverse proxy forwarding unmatched /api requests to the upstream API
// ABOUTME: Replaces client identity headers with the verified user's and hides upstream failures

package proxy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gigahard/vibecode-gateway/internal/auth"
)

// Identity headers set from the verified token.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// strippedHeaders never reach the upstream as sent by the client.
var strippedHeaders = []string{HeaderUserID, HeaderUserEmail, HeaderUserName, "Authorization"}

// Proxy forwards requests to a single upstream.
type Proxy struct {
	upstream *url.URL
	rp       *httputil.ReverseProxy
	logger   *slog.Logger
}

// New creates a proxy to upstreamURL. timeout bounds the wait for response headers.
func New(upstreamURL string, timeout time.Duration, logger *slog.Logger) (*Proxy, error) {
	u, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url must be http or https, got %q", upstreamURL)
	}

	p := &Proxy{upstream: u, logger: logger.With("component", "proxy")}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		Transport:    transport,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

// Upstream returns the configured upstream URL.
func (p *Proxy) Upstream() string {
	return p.upstream.String()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.upstream)
	pr.SetXForwarded()

	for _, h := range strippedHeaders {
		pr.Out.Header.Del(h)
	}
	if u := auth.UserFromContext(pr.In.Context()); u != nil {
		pr.Out.Header.Set(HeaderUserID, u.ID)
		pr.Out.Header.Set(HeaderUserEmail, u.Email)
		pr.Out.Header.Set(HeaderUserName, u.FullName)
	}

	p.logger.Debug("proxying request",
		"method", pr.In.Method,
		"path", pr.In.URL.Path,
		"target", pr.Out.URL.String(),
	)
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("upstream request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Internal server error"})
}
