package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// Credentials orchestrates login, refresh, logout, and password change by
// combining the user store, the password hasher, the token codec, and the
// refresh-token ledger.
type Credentials struct {
	users  UserStore
	hasher PasswordAuthenticator
	codec  TokenCodec
	ledger *Ledger
	logger Logger
}

var _ CredentialAuthenticator = (*Credentials)(nil)

// NewCredentials wires the credential service from its collaborators.
func NewCredentials(users UserStore, hasher PasswordAuthenticator, codec TokenCodec, ledger *Ledger) *Credentials {
	return &Credentials{
		users:  users,
		hasher: hasher,
		codec:  codec,
		ledger: ledger,
		logger: defLogger{},
	}
}

func (c *Credentials) WithLogger(logger Logger) *Credentials {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Login verifies the password and issues a fresh token pair. Unknown user
// and wrong password are indistinguishable to the caller.
func (c *Credentials) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := c.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		c.logger.Error("login user lookup failed: %v", err)
		return nil, ErrAuthenticationFailed
	}
	if user == nil {
		c.logger.Debug("login attempt for unknown identifier")
		return nil, ErrAuthenticationFailed
	}

	if !c.hasher.VerifyPassword(password, user.PasswordHash) {
		c.logger.Debug("login password verification failed for user %s", user.ID)
		return nil, ErrAuthenticationFailed
	}

	if c.hasher.NeedsRehash(user.PasswordHash) {
		c.rehashBestEffort(ctx, user, password)
	}

	return c.issuePair(ctx, IdentityFromUserRecord(user))
}

// Refresh exchanges a still-valid refresh token for a new pair. The expired
// access token is decoded without expiry checks purely to recover the
// claimed subject; authorization comes from the refresh token rotation.
func (c *Credentials) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := c.codec.Decode(accessToken, false)
	if err != nil {
		return nil, err
	}

	rotated, err := c.ledger.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if rotated.IdentityID != claims.UserID() {
		// Token-pair mixing: the refresh token belongs to someone else than
		// the access token claims. Kill the owning identity's chain, the
		// replacement we just minted included.
		c.logger.Warn("refresh token pair identity mismatch for identity %s", rotated.IdentityID)
		if err := c.ledger.RevokeAll(ctx, rotated.IdentityID); err != nil {
			c.logger.Error("mismatch containment failed: %v", err)
		}
		return nil, ErrIdentityMismatch
	}

	user, err := c.users.FindByID(ctx, rotated.IdentityID)
	if err != nil {
		c.logger.Error("refresh user lookup failed: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}
	if user == nil {
		// Account is gone; nothing should stay refreshable.
		if err := c.ledger.RevokeAll(ctx, rotated.IdentityID); err != nil {
			c.logger.Error("orphan containment failed: %v", err)
		}
		return nil, ErrAuthenticationFailed
	}

	access, expiresAt, err := c.codec.Encode(IdentityFromUserRecord(user))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: rotated.Token,
		ExpiresAt:    expiresAt,
	}, nil
}

// Logout revokes every refresh token of the presented token's owner, not
// just the presented one. Invalidating all sessions on logout is a
// deliberate, conservative policy; revisit if single-session logout becomes
// a product requirement. Unknown tokens are a no-op.
func (c *Credentials) Logout(ctx context.Context, refreshToken string) error {
	owner, err := c.ledger.Owner(ctx, refreshToken)
	if err != nil {
		if goerrors.Is(err, ErrRefreshTokenNotFound) {
			return nil
		}
		return err
	}
	return c.ledger.RevokeAll(ctx, owner)
}

// ChangePassword verifies the current password, stores a new record, and
// revokes all outstanding sessions for the identity.
func (c *Credentials) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return ErrNoEmptyString
	}

	user, err := c.users.FindByID(ctx, identityID)
	if err != nil {
		c.logger.Error("change password user lookup failed: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}
	if user == nil {
		return ErrInvalidCredentials
	}

	if !c.hasher.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	// Policy checks run only against a verified caller so the error does not
	// reveal whether the current password was right.
	if newPassword == currentPassword {
		return ErrPolicyViolation
	}

	record, err := c.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := c.users.UpdatePasswordHash(ctx, user.ID, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password record")
	}

	// A changed password orphans every outstanding session.
	if err := c.ledger.RevokeAll(ctx, user.ID); err != nil {
		c.logger.Error("post password-change revocation failed: %v", err)
		return err
	}

	return nil
}

func (c *Credentials) issuePair(ctx context.Context, identity Identity) (*TokenPair, error) {
	access, expiresAt, err := c.codec.Encode(identity)
	if err != nil {
		return nil, err
	}

	refresh, err := c.ledger.Issue(ctx, identity.ID())
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt,
	}, nil
}

// rehashBestEffort upgrades legacy or under-iterated records during login.
// Failure only costs us the upgrade, never the login.
func (c *Credentials) rehashBestEffort(ctx context.Context, user *UserRecord, password string) {
	record, err := c.hasher.HashPassword(password)
	if err != nil {
		c.logger.Error("password rehash failed for user %s: %v", user.ID, err)
		return
	}
	if err := c.users.UpdatePasswordHash(ctx, user.ID, record); err != nil {
		c.logger.Error("password rehash store failed for user %s: %v", user.ID, err)
		return
	}
	c.logger.Info("password record upgraded for user %s", user.ID)
}
