// Package auth provides credential hashing and API token primitives.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const generatedSecretLength = 12

// Alphabet for generated secrets. No 0/O or 1/l to keep them typeable
// from a phone keyboard.
const secretAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HashSecret derives a bcrypt hash for storage. The raw secret is never
// persisted.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// CompareSecret reports whether the raw secret matches the stored hash.
func CompareSecret(hash, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return err == nil
}

// GenerateSecret produces a random one-time secret for bot-driven
// registration, where the user never picks a password themselves.
func GenerateSecret() (string, error) {
	buf := make([]byte, generatedSecretLength)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate secret: %w", err)
		}
		buf[i] = secretAlphabet[n.Int64()]
	}
	return string(buf), nil
}
