package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrSecretMismatch is returned when a client secret does not match its hash.
var ErrSecretMismatch = errors.New("client secret does not match")

// HashSecret bcrypt-hashes a service-account client secret.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// CompareSecret checks secret against a hash produced by HashSecret.
func CompareSecret(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrSecretMismatch
	}
	return err
}

// GenerateSecret returns a random URL-safe client secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
