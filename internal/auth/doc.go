// Package auth provides session tokens and request authentication for vibecode-gateway.
//
// # Session Tokens
//
// Users sign in through an OAuth provider (see package oauth) or a local
// username/password. Either way the gateway issues an HS256 JWT whose claims
// carry the user profile:
//
//	{"id": "...", "username": "...", "email": "...", "full_name": "...",
//	 "avatar_url": "...", "provider": "github", "sub": "...", "iat": ..., "exp": ...}
//
// Tokens are signed with auth.jwt_secret (at least MinSecretLength bytes) and
// expire after auth.token_ttl (24h by default).
//
// # HTTP Middleware
//
// RequireUser rejects requests without a valid token. OptionalUser attaches
// the user when one is present. Both read the token from
//
//	Authorization: Bearer <token>
//
// and fall back to the ?token= query parameter, which the browser client uses
// right after an OAuth redirect. Handlers fetch the identity with
// UserFromContext.
//
// # Local Accounts
//
// auth.local_users maps usernames to bcrypt hashes. With auth.dev_login
// enabled, any non-empty credentials are accepted and produce a
// "local:<username>" user.
package auth
