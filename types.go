package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity is the immutable snapshot of a user that token claims are built
// from. It is sourced from the external user store and never persisted here.
type Identity interface {
	ID() string
	Username() string
	Email() string
	Roles() []string
}

// UserRecord is what the user-management collaborator hands us: the identity
// snapshot plus the serialized password record it owns.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	Roles        []string
	PasswordHash string
}

// UserStore is the user lookup capability consumed by the credential service.
// It is owned by the user-management collaborator.
type UserStore interface {
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordRecord string) error
}

// TokenPair is the result of a successful login or refresh exchange.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CredentialAuthenticator orchestrates login, refresh, logout, and password
// change against the user store and the refresh-token ledger.
type CredentialAuthenticator interface {
	Login(ctx context.Context, identifier, password string) (*TokenPair, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error
}

// TokenCodec builds and parses signed access tokens and mints the opaque
// refresh-token values.
type TokenCodec interface {
	Encode(identity Identity) (string, time.Time, error)
	Decode(raw string, checkExpiry bool) (AuthClaims, error)
	NewOpaqueToken() (string, error)
}

// PasswordAuthenticator hashes and verifies password records.
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, record string) bool
	NeedsRehash(record string) bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
