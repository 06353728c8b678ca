package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestStaticToken(t *testing.T) {
	if tok, ok := StaticToken("abc").CurrentToken(); !ok || tok != "abc" {
		t.Errorf("CurrentToken() = %q, %v", tok, ok)
	}
	if _, ok := StaticToken("").CurrentToken(); ok {
		t.Error("empty static token should report absent")
	}
}

func TestStore_JWT(t *testing.T) {
	s := NewStore()
	token := signToken(t, jwt.MapClaims{
		"sub":   "alice",
		"roles": []any{"librarian"},
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})

	id, err := s.SetToken(token)
	if err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	if id.Principal != "alice" {
		t.Errorf("Principal = %q, want alice", id.Principal)
	}
	if !id.HasRole("librarian") {
		t.Errorf("Roles = %v, want librarian", id.Roles)
	}

	got, ok := s.CurrentToken()
	if !ok || got != token {
		t.Errorf("CurrentToken() = %q, %v", got, ok)
	}
}

func TestStore_ExpiryIsCheckedAtRead(t *testing.T) {
	now := time.Now()
	s := NewStore()
	s.now = func() time.Time { return now }

	token := signToken(t, jwt.MapClaims{"sub": "bob", "exp": now.Add(time.Minute).Unix()})
	if _, err := s.SetToken(token); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	if _, ok := s.CurrentToken(); !ok {
		t.Fatal("token should be current before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := s.CurrentToken(); ok {
		t.Error("expired token must not be supplied")
	}
}

func TestStore_RejectsExpiredAndMalformed(t *testing.T) {
	s := NewStore()

	expired := signToken(t, jwt.MapClaims{"sub": "bob", "exp": time.Now().Add(-time.Minute).Unix()})
	if _, err := s.SetToken(expired); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("SetToken(expired) error = %v, want ErrTokenExpired", err)
	}
	if _, err := s.SetToken("a.b.c"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("SetToken(malformed) error = %v, want ErrTokenMalformed", err)
	}
	if _, err := s.SetToken("  "); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("SetToken(blank) error = %v, want ErrMissingCredentials", err)
	}
	if _, ok := s.CurrentToken(); ok {
		t.Error("store should still be empty")
	}
}

func TestStore_OpaqueTokenAndClear(t *testing.T) {
	s := NewStore()
	id, err := s.SetToken("Bearer opaque-session-token")
	if err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	if id != nil {
		t.Errorf("opaque token should have no identity, got %+v", id)
	}
	if tok, ok := s.CurrentToken(); !ok || tok != "opaque-session-token" {
		t.Errorf("CurrentToken() = %q, %v", tok, ok)
	}

	s.Clear()
	if _, ok := s.CurrentToken(); ok {
		t.Error("cleared store should report absent")
	}
	if s.Identity() != nil {
		t.Error("cleared store should have no identity")
	}
}
