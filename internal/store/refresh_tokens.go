package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
)

func (s *Store) CreateRefreshToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) (model.RefreshToken, error) {
	now := time.Now().UTC()
	rt := model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt.Format(time.RFC3339), rt.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return model.RefreshToken{}, err
	}
	return rt, nil
}

// GetRefreshTokenByHash returns ErrNotFound when absent (§4.1 step 1).
func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = ?
	`, hash)
	var rt model.RefreshToken
	var expires, created string
	if err := row.Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &expires, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrNotFound
		}
		return model.RefreshToken{}, err
	}
	rt.ExpiresAt, _ = time.Parse(time.RFC3339, expires)
	rt.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return rt, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = ?`, id)
	return err
}

// ReapExpiredRefreshTokens lazily removes expired rows (§3 invariant).
func (s *Store) ReapExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, now.Format(time.RFC3339))
	return err
}
