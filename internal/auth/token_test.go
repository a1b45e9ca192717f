package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	issuer := NewIssuer([]byte("test-signing-key"), 15*time.Minute)
	token, err := issuer.IssueAccessToken("user-1")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	subject, err := issuer.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if subject != "user-1" {
		t.Errorf("subject = %q, want %q", subject, "user-1")
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	issuer := NewIssuer([]byte("test-signing-key"), -time.Minute)
	token, err := issuer.IssueAccessToken("user-2")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if _, err := issuer.VerifyAccessToken(token); err == nil {
		t.Fatal("expected an error for an already-expired token")
	}
}

func TestVerifyAccessTokenWrongKey(t *testing.T) {
	issuer := NewIssuer([]byte("key-one"), 15*time.Minute)
	token, err := issuer.IssueAccessToken("user-3")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	other := NewIssuer([]byte("key-two"), 15*time.Minute)
	if _, err := other.VerifyAccessToken(token); err == nil {
		t.Fatal("expected an error when verifying with a different signing key")
	}
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	issuer := NewIssuer([]byte("test-signing-key"), 15*time.Minute)
	if _, err := issuer.VerifyAccessToken("not-a-jwt"); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}

func TestGenerateRefreshTokenUniqueAndHashable(t *testing.T) {
	plain1, hash1, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	plain2, hash2, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if plain1 == plain2 {
		t.Error("two generated refresh tokens should not collide")
	}
	if hash1 == hash2 {
		t.Error("hashes of distinct tokens should not collide")
	}
	if HashRefreshToken(plain1) != hash1 {
		t.Error("HashRefreshToken(plain1) should reproduce the same hash returned by GenerateRefreshToken")
	}
}
