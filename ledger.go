package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// OpaqueTokenMinter mints the random refresh-token values. TokenCodec
// implementations satisfy it.
type OpaqueTokenMinter interface {
	NewOpaqueToken() (string, error)
}

// Ledger manages the refresh-token lifecycle on top of a RefreshTokenStore.
// It holds no request-affine state and is safe for concurrent use; the store
// provides the atomicity rotation depends on.
type Ledger struct {
	store  RefreshTokenStore
	minter OpaqueTokenMinter
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

// NewLedger builds a Ledger with the configured refresh TTL.
func NewLedger(cfg *Config, store RefreshTokenStore, minter OpaqueTokenMinter) *Ledger {
	return &Ledger{
		store:  store,
		minter: minter,
		ttl:    cfg.RefreshTokenTTL(),
		logger: defLogger{},
		now:    time.Now,
	}
}

func (l *Ledger) WithLogger(logger Logger) *Ledger {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithClock injects a custom time source (useful for tests).
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	if clock != nil {
		l.now = clock
	}
	return l
}

// Issue creates and persists a new Active record for the identity.
func (l *Ledger) Issue(ctx context.Context, identityID string) (*RefreshToken, error) {
	if identityID == "" {
		return nil, goerrors.New("identity id is required", goerrors.CategoryBadInput)
	}

	record, err := l.newRecord(identityID)
	if err != nil {
		return nil, err
	}

	if err := l.store.Insert(ctx, record); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return record, nil
}

// Rotate consumes oldToken and returns its Active replacement. Presenting a
// token that is no longer Active is treated as replay: every token for the
// owning identity is revoked before the Reused error is returned, so a
// stolen chain dies rather than staying usable.
func (l *Ledger) Rotate(ctx context.Context, oldToken string) (*RefreshToken, error) {
	record, err := l.store.Find(ctx, oldToken)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token lookup failed")
	}
	if record == nil {
		return nil, ErrRefreshTokenNotFound
	}

	now := l.now()

	if record.Status != RefreshStatusActive {
		l.containReplay(ctx, record.IdentityID, now)
		return nil, ErrRefreshTokenReused
	}

	if record.IsExpired(now) {
		return nil, ErrRefreshTokenExpired
	}

	replacement, err := l.newRecord(record.IdentityID)
	if err != nil {
		return nil, err
	}

	rotated, err := l.store.Rotate(ctx, oldToken, replacement, now)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token rotation failed")
	}
	if !rotated {
		// Lost the race: another caller consumed this token between our read
		// and the store transition. Same containment as a replay.
		l.containReplay(ctx, record.IdentityID, now)
		return nil, ErrRefreshTokenReused
	}

	return replacement, nil
}

// RevokeAll marks every token for the identity Revoked. Used on logout and
// password change.
func (l *Ledger) RevokeAll(ctx context.Context, identityID string) error {
	if identityID == "" {
		return goerrors.New("identity id is required", goerrors.CategoryBadInput)
	}

	if _, err := l.store.RevokeAllForIdentity(ctx, identityID, l.now()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh tokens")
	}
	return nil
}

// IsActive is a read-only check on a token value.
func (l *Ledger) IsActive(ctx context.Context, token string) (bool, error) {
	record, err := l.store.Find(ctx, token)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token lookup failed")
	}
	if record == nil {
		return false, nil
	}
	return record.IsActive(l.now()), nil
}

// Owner resolves the owning identity of a token value, regardless of state.
// Logout uses it to revoke the whole session set from a single token.
func (l *Ledger) Owner(ctx context.Context, token string) (string, error) {
	record, err := l.store.Find(ctx, token)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token lookup failed")
	}
	if record == nil {
		return "", ErrRefreshTokenNotFound
	}
	return record.IdentityID, nil
}

// PruneExpired deletes records expired before now. Intended for a periodic
// external sweep; rotation never depends on it.
func (l *Ledger) PruneExpired(ctx context.Context) (int64, error) {
	return l.store.DeleteExpired(ctx, l.now())
}

func (l *Ledger) newRecord(identityID string) (*RefreshToken, error) {
	value, err := l.minter.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := l.now()
	return &RefreshToken{
		ID:         uuid.New(),
		Token:      value,
		IdentityID: identityID,
		Status:     RefreshStatusActive,
		IssuedAt:   now,
		ExpiresAt:  now.Add(l.ttl),
	}, nil
}

// containReplay is fail-safe: a replayed token nukes the identity's whole
// chain even if the revocation itself hits an error (which we can only log).
func (l *Ledger) containReplay(ctx context.Context, identityID string, now time.Time) {
	revoked, err := l.store.RevokeAllForIdentity(ctx, identityID, now)
	if err != nil {
		l.logger.Error("replay containment failed for identity %s: %v", identityID, err)
		return
	}
	l.logger.Warn("refresh token replay detected; revoked %d tokens for identity %s", revoked, identityID)
}
