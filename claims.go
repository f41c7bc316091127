package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the verified view of an access token handed to callers.
type AuthClaims interface {
	Subject() string
	UserID() string
	UserName() string
	UserEmail() string
	UserRoles() []string
	TokenID() string
	HasRole(role string) bool
	HasAnyRole(roles []string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claim set embedded in access tokens.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string   `json:"uid,omitempty"`
	Username string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim.
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, falling back to the subject.
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// UserName returns the username claim.
func (c *JWTClaims) UserName() string {
	return c.Username
}

// UserEmail returns the email claim.
func (c *JWTClaims) UserEmail() string {
	return c.Email
}

// UserRoles returns the role claims.
func (c *JWTClaims) UserRoles() []string {
	return c.Roles
}

// TokenID returns the unique token id (jti).
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// HasRole checks for a single role claim.
func (c *JWTClaims) HasRole(role string) bool {
	for _, held := range c.Roles {
		if held == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the claims intersect the required set. An empty
// required set always passes.
func (c *JWTClaims) HasAnyRole(roles []string) bool {
	return HasAnyRole(c.Roles, roles)
}

// Expires returns the expiration time.
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time.
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// IdentityFromClaims adapts verified claims back into an Identity snapshot.
func IdentityFromClaims(claims AuthClaims) Identity {
	if claims == nil {
		return nil
	}
	return NewIdentity(claims.UserID(), claims.UserName(), claims.UserEmail(), claims.UserRoles())
}
