package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokenStatus tracks the refresh-token state machine. A token starts
// Active and transitions exactly once, to Rotated (consumed by a successful
// refresh) or Revoked (logout, password change, theft containment). Both are
// terminal; expiry is derived from ExpiresAt rather than stored.
type RefreshTokenStatus = string

const (
	RefreshStatusActive  RefreshTokenStatus = "active"
	RefreshStatusRotated RefreshTokenStatus = "rotated"
	RefreshStatusRevoked RefreshTokenStatus = "revoked"
)

// RefreshToken is the server-side record paired with an opaque token value.
// The value itself carries no structure; clients treat it as a black box.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rtk"`

	ID         uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token      string             `bun:"token,notnull,unique" json:"-"`
	IdentityID string             `bun:"identity_id,notnull" json:"identity_id,omitempty"`
	Status     RefreshTokenStatus `bun:"status,notnull" json:"status,omitempty"`
	ReplacedBy *uuid.UUID         `bun:"replaced_by,nullzero,type:uuid" json:"replaced_by,omitempty"`
	IssuedAt   time.Time          `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt  time.Time          `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt  *time.Time         `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	CreatedAt  *time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt  *time.Time         `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsExpired reports whether the record is past its TTL.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive reports whether the record can still be rotated.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.Status == RefreshStatusActive && !t.IsExpired(now)
}

// RefreshTokenStore is the persistence capability consumed by the Ledger.
// Rotate must be atomic under concurrent access: of two callers rotating the
// same token, exactly one may observe success.
type RefreshTokenStore interface {
	Insert(ctx context.Context, record *RefreshToken) error
	// Find returns (nil, nil) when no record exists for the token value.
	Find(ctx context.Context, token string) (*RefreshToken, error)
	// Rotate transitions the named record from Active to Rotated, links the
	// replacement, and persists the replacement as Active, all in one atomic
	// step. It reports false when the record was no longer Active.
	Rotate(ctx context.Context, token string, replacement *RefreshToken, at time.Time) (bool, error)
	// RevokeAllForIdentity marks every non-terminal record for the identity
	// Revoked and returns how many were affected.
	RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int64, error)
	// DeleteExpired removes records whose TTL passed before the cutoff. It
	// exists for an external periodic sweep.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
