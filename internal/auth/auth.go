// Package auth implements JWT bearer authentication for the HTTP API.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("authorization header is missing")
	// ErrInvalidToken is returned for malformed, mis-signed or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	UserID  string
	IsAdmin bool
}

type claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"adm,omitempty"`
}

// Verifier signs and verifies HS256 tokens with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for the identity, valid for ttl. Used by the seeding
// tool and tests; production tokens come from the same secret.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		IsAdmin: id.IsAdmin,
	})
	signed, err := t.SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse verifies the raw token and extracts the caller identity.
func (v *Verifier) Parse(raw string) (Identity, error) {
	var c claims
	t, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !t.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, IsAdmin: c.IsAdmin}, nil
}

// BearerToken extracts the token from an Authorization header value in the
// form "Bearer {token}".
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

type contextKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the authenticated identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
