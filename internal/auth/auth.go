// Package auth verifies bearer tokens issued by the identity provider.
//
// Minima does not run signups or sessions itself; the dashboard's identity
// provider issues HS256 JWTs under a shared secret, and this package only
// verifies them and extracts the owner id from the subject claim.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the verified token claims Minima cares about.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// OwnerID returns the subject as a UUID. Verify guarantees it parses.
func (c *Claims) OwnerID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// Verifier validates identity-provider tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier for the shared HS256 secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: JWT secret is not configured")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a token, returning its claims. The subject
// must be the owner's UUID.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("auth: validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("auth: invalid subject (expected UUID): %w", err)
	}

	return claims, nil
}
