package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// ChangePasswordMessage carries a credential-change request. The caller may
// wrap handler execution in a transaction with the user store.
type ChangePasswordMessage struct {
	IdentityID      string `json:"identity_id"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (m ChangePasswordMessage) Type() string { return "credentials.change_password" }

// Validate rejects malformed requests before any credential work happens.
func (m ChangePasswordMessage) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.IdentityID, validation.Required),
		validation.Field(&m.CurrentPassword, validation.Required),
		validation.Field(&m.NewPassword, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid password change request").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

type ChangePasswordHandler struct {
	credentials CredentialAuthenticator
}

func NewChangePasswordHandler(credentials CredentialAuthenticator) *ChangePasswordHandler {
	return &ChangePasswordHandler{credentials: credentials}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	return h.credentials.ChangePassword(ctx, event.IdentityID, event.CurrentPassword, event.NewPassword)
}

// RevokeSessionsMessage requests logout-everywhere for an identity.
type RevokeSessionsMessage struct {
	IdentityID string `json:"identity_id"`
}

func (m RevokeSessionsMessage) Type() string { return "credentials.revoke_sessions" }

type RevokeSessionsHandler struct {
	ledger *Ledger
}

func NewRevokeSessionsHandler(ledger *Ledger) *RevokeSessionsHandler {
	return &RevokeSessionsHandler{ledger: ledger}
}

func (h *RevokeSessionsHandler) Execute(ctx context.Context, event RevokeSessionsMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during session revocation",
		)
	default:
	}

	if event.IdentityID == "" {
		return goerrors.New("identity id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	return h.ledger.RevokeAll(ctx, event.IdentityID)
}
