package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "carol@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	rt, err := s.CreateRefreshToken(ctx, u.ID, "hash-of-token", time.Hour)
	if err != nil {
		t.Fatalf("CreateRefreshToken() error = %v", err)
	}
	if rt.ID == "" {
		t.Fatal("expected a generated refresh token id")
	}

	got, err := s.GetRefreshTokenByHash(ctx, "hash-of-token")
	if err != nil {
		t.Fatalf("GetRefreshTokenByHash() error = %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", got.UserID, u.ID)
	}
	if !got.ExpiresAt.After(time.Now().UTC()) {
		t.Errorf("ExpiresAt should be in the future")
	}
}

func TestDeleteRefreshTokenIsSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "dave@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	rt, err := s.CreateRefreshToken(ctx, u.ID, "single-use-hash", time.Hour)
	if err != nil {
		t.Fatalf("CreateRefreshToken() error = %v", err)
	}

	if err := s.DeleteRefreshToken(ctx, rt.ID); err != nil {
		t.Fatalf("DeleteRefreshToken() error = %v", err)
	}

	_, err = s.GetRefreshTokenByHash(ctx, "single-use-hash")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRefreshTokenByHash() after delete error = %v, want ErrNotFound", err)
	}
}

func TestReapExpiredRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "erin@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := s.CreateRefreshToken(ctx, u.ID, "expired-hash", -time.Hour); err != nil {
		t.Fatalf("CreateRefreshToken() error = %v", err)
	}
	if _, err := s.CreateRefreshToken(ctx, u.ID, "live-hash", time.Hour); err != nil {
		t.Fatalf("CreateRefreshToken() error = %v", err)
	}

	if err := s.ReapExpiredRefreshTokens(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("ReapExpiredRefreshTokens() error = %v", err)
	}

	if _, err := s.GetRefreshTokenByHash(ctx, "expired-hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired token should have been reaped, err = %v", err)
	}
	if _, err := s.GetRefreshTokenByHash(ctx, "live-hash"); err != nil {
		t.Errorf("live token should still be present, err = %v", err)
	}
}
