package apiclient

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionStore is the persistence boundary that owns the bearer token.
type SessionStore interface {
	// Token returns the stored bearer token or "" when the session is anonymous.
	Token(ctx context.Context) (string, error)
	// Clear removes all persisted session state and reports whether anything was removed.
	// Implementations must be idempotent.
	Clear(ctx context.Context) (bool, error)
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	token  string
	clears int
}

// NewMemoryStore returns a store seeded with token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Token implements SessionStore.
func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// SetToken replaces the stored token.
func (s *MemoryStore) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear implements SessionStore.
func (s *MemoryStore) Clear(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false, nil
	}
	s.token = ""
	s.clears++
	return true, nil
}

// Clears reports how many times Clear actually removed a token.
func (s *MemoryStore) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

// TokenExpired reports whether token is a JWT whose exp claim is not after now.
// The signature is not checked; opaque tokens and tokens without exp never expire here.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
