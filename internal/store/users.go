package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
)

// CreateUser inserts a new user. Callers must pre-hash the password.
// Returns a conflict-flavored error (ErrDuplicateEmail) if email_fold collides.
var ErrDuplicateEmail = errors.New("email already registered")
var ErrNotFound = errors.New("not found")

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (model.User, error) {
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		EmailFold:    strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, email_fold, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.EmailFold, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	fold := strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, email_fold, password_hash, created_at FROM users WHERE email_fold = ?
	`, fold)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, email_fold, password_hash, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var created string
	if err := row.Scan(&u.ID, &u.Email, &u.EmailFold, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return u, nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
