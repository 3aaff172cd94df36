// Package oauth implements the GitHub and Google sign-in flows.
//
// Providers wrap golang.org/x/oauth2 configs and normalize each identity
// provider's profile into an auth.User. Service sits in front of them and
// adds the two pieces of state the HTTP handlers need: state nonces for the
// browser redirect flow and a replay guard for authorization codes.
package oauth
