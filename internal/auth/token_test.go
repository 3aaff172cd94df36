// ABOUTME: Unit tests for JWT token issuance and verification
// ABOUTME: Tests round trips, invalid tokens, expired tokens, and algorithm pinning

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret is a 32-byte secret that meets MinSecretLength requirement.
var testSecret = []byte("token-issuer-test-secret-32byte!")

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

func TestNewIssuer_ShortSecret(t *testing.T) {
	if _, err := NewIssuer([]byte("short"), time.Hour); !errors.Is(err, ErrShortSecret) {
		t.Errorf("expected ErrShortSecret, got %v", err)
	}
}

func TestNewIssuer_DefaultTTL(t *testing.T) {
	issuer, err := NewIssuer(testSecret, 0)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	if issuer.TTL() != 24*time.Hour {
		t.Errorf("TTL() = %v, want 24h", issuer.TTL())
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	want := &User{
		ID:        "github:583231",
		Username:  "octocat",
		Email:     "octocat@github.com",
		FullName:  "The Octocat",
		AvatarURL: "https://avatars.githubusercontent.com/u/583231",
		Provider:  "github",
	}

	token, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Verify() = %+v, want %+v", got, want)
	}
}

func TestIssuer_IssueRequiresID(t *testing.T) {
	issuer := newTestIssuer(t)
	if _, err := issuer.Issue(&User{Username: "anon"}); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("expected ErrMissingClaim, got %v", err)
	}
	if _, err := issuer.Issue(nil); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("expected ErrMissingClaim for nil user, got %v", err)
	}
}

func TestIssuer_InvalidToken(t *testing.T) {
	issuer := newTestIssuer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{
			name: "wrong secret",
			token: func() string {
				other, _ := NewIssuer([]byte("a-completely-different-secret-32b"), time.Hour)
				token, _ := other.Issue(&User{ID: "u1"})
				return token
			}(),
		},
		{
			name: "none algorithm",
			token: func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "id": "u1"})
				s, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_ExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.Issue(&User{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestIssuer_SubjectOnlyToken(t *testing.T) {
	issuer := newTestIssuer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "legacy-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	u, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if u.ID != "legacy-user" {
		t.Errorf("ID = %q, want legacy-user", u.ID)
	}
}

func TestIssuer_MissingSubject(t *testing.T) {
	issuer := newTestIssuer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString(testSecret)

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}
