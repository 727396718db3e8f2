package authsvc

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// PasswordHasher turns a plaintext password into its stored digest.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

// SHA256Hasher hashes the UTF-8 bytes of a password with unsalted SHA-256
// and returns the lowercase hex digest.
type SHA256Hasher struct{}

var _ PasswordHasher = SHA256Hasher{}

func (SHA256Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	sum := sha256.Sum256([]byte(password))

	return hex.EncodeToString(sum[:]), nil
}

// hashesEqual compares two digests in constant time.
func hashesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
