package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token for the next request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - CurrentToken is called at every dispatch and must not block on I/O.
// - A false second result means no token; the request is sent unauthenticated.
type TokenSource interface {
	CurrentToken() (string, bool)
}

// StaticToken is a fixed token. The empty string means no token.
type StaticToken string

// CurrentToken returns the token.
func (t StaticToken) CurrentToken() (string, bool) {
	return string(t), t != ""
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func() (string, bool)

// CurrentToken calls f.
func (f TokenSourceFunc) CurrentToken() (string, bool) { return f() }

// Store holds the session token produced by a login.
//
// JWTs are inspected without signature verification (verification is the
// server's job) to extract the identity and expiry. Opaque tokens are stored
// as-is with no identity.
type Store struct {
	mu       sync.RWMutex
	token    string
	identity *Identity
	now      func() time.Time
}

// NewStore creates an empty token store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetToken replaces the stored token. An already-expired JWT is rejected with
// ErrTokenExpired and the previous token is kept.
func (s *Store) SetToken(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingCredentials
	}

	var id *Identity
	if strings.Count(token, ".") == 2 {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
		id = identityFromClaims(claims)
		if id.ExpiredAt(s.clock()) {
			return nil, ErrTokenExpired
		}
	}

	s.mu.Lock()
	s.token = token
	s.identity = id
	s.mu.Unlock()
	return id, nil
}

// Clear removes the stored token.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.mu.Unlock()
}

// CurrentToken returns the stored token unless it is absent or expired.
func (s *Store) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if s.identity != nil && s.identity.ExpiredAt(s.clock()) {
		return "", false
	}
	return s.token, true
}

// Identity returns the identity of the stored token, or nil.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

var (
	_ TokenSource = StaticToken("")
	_ TokenSource = TokenSourceFunc(nil)
	_ TokenSource = (*Store)(nil)
)
