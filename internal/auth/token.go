// Package auth implements C1: password verification, access-token issuance,
// and opaque refresh-token rotation.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens with a single symmetric key
// loaded at process startup (§4.1).
type Issuer struct {
	key []byte
	ttl time.Duration
}

func NewIssuer(key []byte, ttl time.Duration) *Issuer {
	return &Issuer{key: key, ttl: ttl}
}

func (i *Issuer) IssueAccessToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.key)
}

// VerifyAccessToken returns the subject (user id) on success. Any decode
// failure — bad signature or past expiry — collapses to perr.Auth (§4.1,
// §7: "never discloses which factor was wrong").
func (i *Issuer) VerifyAccessToken(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return "", perr.Auth("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", perr.Auth("invalid or expired token")
	}
	return claims.Subject, nil
}

// GenerateRefreshToken returns the plaintext token (returned to the caller
// once) and its hash (the only thing persisted, §4.1).
func GenerateRefreshToken() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	hash = HashRefreshToken(plaintext)
	return plaintext, hash, nil
}

// HashRefreshToken is a lookup key, not a secret — a fast digest suffices
// (Design Note: "Opaque token storage via hash lookup").
func HashRefreshToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
