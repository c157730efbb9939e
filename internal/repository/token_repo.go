package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-service/internal/model"
)

const tokenColumns = `token, user_id, user_agent, expires_at, created_at`

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token = $1`, token)

	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

func (r *TokenRepository) FindByUserDevice(ctx context.Context, userID string, userAgent string) (model.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE user_id = $1 AND user_agent = $2`,
		userID, userAgent)

	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token by device: %w", err)
	}
	return t, nil
}

// Upsert replaces the live token for the (user, device) pair or creates one.
// A single statement keyed on the (user_id, user_agent) unique constraint so
// concurrent logins from the same device cannot leave two live rows.
func (r *TokenRepository) Upsert(ctx context.Context, t model.RefreshToken) (model.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO refresh_tokens (token, user_id, user_agent, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, user_agent)
		 DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
		 RETURNING `+tokenColumns,
		t.Token, t.UserID, t.UserAgent, t.ExpiresAt, t.CreatedAt)

	stored, err := scanToken(row)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("upsert refresh token: %w", err)
	}
	return stored, nil
}

// DeleteByToken removes the row if present; a missing token is not an error.
func (r *TokenRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete refresh tokens for user: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := row.Scan(&t.Token, &t.UserID, &t.UserAgent, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	return t, nil
}
