// ABOUTME: Username/password login against bcrypt hashes from config
// ABOUTME: Dev mode accepts any non-empty credentials and synthesizes a local user

package auth

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a failed local login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ProviderLocal marks users that signed in with a username and password.
const ProviderLocal = "local"

// LocalAccounts verifies local username/password logins.
type LocalAccounts struct {
	hashes  map[string]string
	devMode bool
}

// NewLocalAccounts creates a verifier over username -> bcrypt hash.
// With devMode set, any non-empty username and password is accepted.
func NewLocalAccounts(hashes map[string]string, devMode bool) *LocalAccounts {
	h := make(map[string]string, len(hashes))
	for user, hash := range hashes {
		h[user] = hash
	}
	return &LocalAccounts{hashes: h, devMode: devMode}
}

// Enabled reports whether any login can succeed.
func (l *LocalAccounts) Enabled() bool {
	return l.devMode || len(l.hashes) > 0
}

// Authenticate checks the credentials and returns the user profile to issue a token for.
func (l *LocalAccounts) Authenticate(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if hash, ok := l.hashes[username]; ok {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return LocalUser(username), nil
	}

	if l.devMode {
		return LocalUser(username), nil
	}
	return nil, ErrInvalidCredentials
}

// LocalUser builds the profile for a local account.
func LocalUser(username string) *User {
	return &User{
		ID:        "local:" + username,
		Username:  username,
		Email:     username + "@example.com",
		FullName:  capitalize(username),
		AvatarURL: "https://via.placeholder.com/150",
		Provider:  ProviderLocal,
	}
}

// HashPassword returns a bcrypt hash suitable for auth.local_users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
