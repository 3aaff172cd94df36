// Package dedupe provides a small TTL cache for single-use values.
//
// The gateway uses it twice: as a set of recently exchanged OAuth
// authorization codes, so a callback replayed by the browser fails fast
// instead of hitting the provider with a spent code, and as the store for
// OAuth state nonces issued by the redirect flow and consumed by Take on
// callback.
package dedupe
