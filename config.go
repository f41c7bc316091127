package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	// DefaultAccessTokenTTLMinutes is the access token lifetime.
	DefaultAccessTokenTTLMinutes = 60
	// DefaultRefreshTokenTTLDays is the refresh token lifetime.
	DefaultRefreshTokenTTLDays = 7
	// DefaultPBKDF2Iterations is the key-derivation work factor.
	DefaultPBKDF2Iterations = 100_000

	// minSecretKeyBytes: HS256 keys shorter than the hash output are weak.
	minSecretKeyBytes = 32
)

// Config holds every option the core recognizes. It is constructed once at
// process start and passed by reference into the components; there is no
// ambient configuration lookup.
type Config struct {
	// SecretKey signs access tokens. At least 32 bytes of entropy.
	SecretKey string
	Issuer    string
	Audience  []string

	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	PBKDF2Iterations      int
}

// SetDefaults fills zero-valued knobs with the documented defaults.
func (c *Config) SetDefaults() {
	if c.AccessTokenTTLMinutes <= 0 {
		c.AccessTokenTTLMinutes = DefaultAccessTokenTTLMinutes
	}
	if c.RefreshTokenTTLDays <= 0 {
		c.RefreshTokenTTLDays = DefaultRefreshTokenTTLDays
	}
	if c.PBKDF2Iterations <= 0 {
		c.PBKDF2Iterations = DefaultPBKDF2Iterations
	}
}

// Validate enforces the configuration surface before any component is built.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SecretKey, validation.Required, validation.Length(minSecretKeyBytes, 0)),
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.AccessTokenTTLMinutes, validation.Min(1)),
		validation.Field(&c.RefreshTokenTTLDays, validation.Min(1)),
		validation.Field(&c.PBKDF2Iterations, validation.Min(1)),
	)
}

// AccessTokenTTL returns the configured access token lifetime.
func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}
