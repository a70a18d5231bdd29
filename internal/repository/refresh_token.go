package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeleteByUserID(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	WithTx(tx *sqlx.Tx) RefreshTokenRepository
}

type refreshTokenRepo struct {
	db database.DBTX
}

func NewRefreshTokenRepository(db *sqlx.DB) RefreshTokenRepository {
	return &refreshTokenRepo{db: db}
}

func (r *refreshTokenRepo) WithTx(tx *sqlx.Tx) RefreshTokenRepository {
	return &refreshTokenRepo{db: tx}
}

func (r *refreshTokenRepo) Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.UserID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByTokenHash returns the row regardless of expiry so callers can
// distinguish an expired token from an unknown one.
func (r *refreshTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&token, err)
}

func (r *refreshTokenRepo) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
