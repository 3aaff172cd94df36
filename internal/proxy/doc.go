// Package proxy forwards API requests the gateway does not serve itself to
// the upstream API, carrying the caller's identity as X-User-* headers.
package proxy
