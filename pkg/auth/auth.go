// Package auth carries the authenticated principal through a request context
// and verifies bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when a token does not verify.
	ErrInvalidToken = errors.New("invalid bearer token")
)

type principalKey struct{}

// WithUserID returns a context carrying the authenticated principal.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, principalKey{}, userID)
}

// UserID returns the authenticated principal, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey{}).(string)
	return id, ok && id != ""
}

// Verifier resolves a bearer token to the principal it was issued to.
// Session-token issuance lives outside this service.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// StaticVerifier verifies tokens against a fixed token to user id table.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewStaticVerifier creates a verifier from a token to user id map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	v := &StaticVerifier{tokens: make(map[string]string, len(tokens))}
	for token, userID := range tokens {
		v.tokens[token] = userID
	}
	return v
}

// Add registers a token for userID.
func (v *StaticVerifier) Add(token, userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = userID
}

// Verify returns the user id the token was issued to.
func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	// Compare against every entry so timing doesn't leak which prefix matched.
	var userID string
	for candidate, id := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			userID = id
		}
	}
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
