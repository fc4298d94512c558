package auth

import (
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// verifier checks a stored hash against a candidate password.
type verifier func(hash, password string) bool

// Accounts created before the bcrypt migration still carry unsalted SHA-1
// hex digests. The legacy scheme is tried first, then bcrypt.
var verifiers = []verifier{verifyLegacySHA1, verifyBcrypt}

func verifyLegacySHA1(hash, password string) bool {
	sum := sha1.Sum([]byte(password))
	return hash == hex.EncodeToString(sum[:])
}

func verifyBcrypt(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyPassword reports whether password matches the stored hash under any
// supported scheme.
func VerifyPassword(hash, password string) bool {
	for _, verify := range verifiers {
		if verify(hash, password) {
			return true
		}
	}
	return false
}

// HashPassword derives the storage hash for a new password using the current
// scheme. Legacy SHA-1 digests are never produced, only accepted.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
