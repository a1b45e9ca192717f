package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted, slow-hash verifier (§4.1).
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword is constant-time by construction (bcrypt.CompareHashAndPassword).
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
