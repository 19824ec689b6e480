// Package ctxutil provides shared context key accessors for the verified
// request identity, so handlers and middleware agree on one set of keys.
package ctxutil

import (
	"context"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/auth"
)

type contextKey string

const (
	keyClaims  contextKey = "claims"
	keyOwnerID contextKey = "owner_id"
)

// WithClaims returns a new context carrying the verified claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, keyClaims, claims)
	ctx = context.WithValue(ctx, keyOwnerID, claims.OwnerID())
	return ctx
}

// ClaimsFromContext extracts the verified claims from the context.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v, ok := ctx.Value(keyClaims).(*auth.Claims); ok {
		return v
	}
	return nil
}

// OwnerIDFromContext extracts the authenticated owner id from the context.
func OwnerIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyOwnerID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
