package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

type Service struct {
	store           *store.Store
	issuer          *Issuer
	refreshTokenTTL time.Duration
}

func NewService(st *store.Store, issuer *Issuer, refreshTokenTTL time.Duration) *Service {
	return &Service{store: st, issuer: issuer, refreshTokenTTL: refreshTokenTTL}
}

func (s *Service) Register(ctx context.Context, email, password string) (model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, perr.Backend("password hash failed", err)
	}
	u, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return model.User{}, perr.Conflict("email already registered")
		}
		return model.User{}, perr.Backend("create user failed", err)
	}
	return u, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Login surfaces identical failures for unknown email and wrong password
// (§4.1 "Errors" — avoid account enumeration).
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, perr.Auth("invalid email or password")
		}
		return TokenPair{}, perr.Backend("lookup user failed", err)
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, perr.Auth("invalid email or password")
	}
	return s.issueTokenPair(ctx, u.ID)
}

// Refresh implements the single-use rotation sequence in §4.1.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	hash := HashRefreshToken(presented)
	rt, err := s.store.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, perr.Auth("invalid refresh token")
		}
		return TokenPair{}, perr.Backend("lookup refresh token failed", err)
	}
	if time.Now().UTC().After(rt.ExpiresAt) {
		_ = s.store.DeleteRefreshToken(ctx, rt.ID)
		return TokenPair{}, perr.Auth("refresh token expired")
	}
	if err := s.store.DeleteRefreshToken(ctx, rt.ID); err != nil {
		return TokenPair{}, perr.Backend("delete refresh token failed", err)
	}
	return s.issueTokenPair(ctx, rt.UserID)
}

func (s *Service) issueTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, perr.Backend("issue access token failed", err)
	}
	plaintext, hash, err := GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, perr.Backend("generate refresh token failed", err)
	}
	if _, err := s.store.CreateRefreshToken(ctx, userID, hash, s.refreshTokenTTL); err != nil {
		return TokenPair{}, perr.Backend("persist refresh token failed", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: plaintext}, nil
}

// VerifyAccessToken exposes the issuer's verification for the HTTP middleware.
func (s *Service) VerifyAccessToken(raw string) (string, error) {
	return s.issuer.VerifyAccessToken(raw)
}
