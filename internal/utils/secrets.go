package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random secret of the
// given byte length, hex encoded
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateServiceSecrets generates the JWT verification secret and the
// payment callback signing secret
func GenerateServiceSecrets() (jwtSecret, paymentSecret string, err error) {
	jwtSecret, err = GenerateSecret(32) // 256-bit
	if err != nil {
		return "", "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	paymentSecret, err = GenerateSecret(64) // HMAC-SHA512 block size
	if err != nil {
		return "", "", fmt.Errorf("failed to generate payment signing secret: %w", err)
	}

	return jwtSecret, paymentSecret, nil
}
