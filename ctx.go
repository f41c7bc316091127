package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var identityCtxKey = &contextKey{"identity"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithIdentityContext sets the verified Identity in the given context.
func WithIdentityContext(r context.Context, identity Identity) context.Context {
	return context.WithValue(r, identityCtxKey, identity)
}

// IdentityFromContext finds the verified Identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context.
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the AuthClaims from the standard context.
func ClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// RouterClaims extracts the AuthClaims the gate middleware stored in the
// router context.
func RouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "identity"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// HasRole checks a role claim directly from the standard context.
func HasRole(ctx context.Context, role string) bool {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	return claims.HasRole(role)
}
