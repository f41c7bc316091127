package auth

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens is the Bun-backed refresh-token repository. It satisfies the
// Ledger's RefreshTokenStore contract on top of the generic repository.
type RefreshTokens interface {
	repository.Repository[*RefreshToken]
	RefreshTokenStore
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var (
	_ RefreshTokens                        = (*refreshTokens)(nil)
	_ repository.Repository[*RefreshToken] = (*refreshTokens)(nil)
)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *refreshTokens) Insert(ctx context.Context, record *RefreshToken) error {
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert refresh token")
	}
	return nil
}

func (r *refreshTokens) Find(ctx context.Context, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("rtk.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load refresh token")
	}
	return record, nil
}

// Rotate runs the consume-and-replace inside a single transaction. The
// guarded UPDATE is the compare-and-set: it only matches while the record is
// still Active, so a concurrent rotation of the same token sees zero rows.
func (r *refreshTokens) Rotate(ctx context.Context, token string, replacement *RefreshToken, at time.Time) (bool, error) {
	var rotated bool

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*RefreshToken)(nil)).
			Set("status = ?", RefreshStatusRotated).
			Set("replaced_by = ?", replacement.ID).
			Set("updated_at = ?", at).
			Where("token = ?", token).
			Where("status = ?", RefreshStatusActive).
			Exec(ctx)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		if _, err := tx.NewInsert().Model(replacement).Exec(ctx); err != nil {
			return err
		}

		rotated = true
		return nil
	})
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token rotation transaction failed")
	}

	return rotated, nil
}

func (r *refreshTokens) RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("status = ?", RefreshStatusRevoked).
		Set("revoked_at = ?", at).
		Set("updated_at = ?", at).
		Where("identity_id = ?", identityID).
		Where("status != ?", RefreshStatusRevoked).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh tokens")
	}
	return res.RowsAffected()
}

func (r *refreshTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete expired refresh tokens")
	}
	return res.RowsAffected()
}
