package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MinSecretBytes is the shortest secret GenerateSecret will produce (256-bit)
const MinSecretBytes = 32

// GenerateSecret returns a hex-encoded cryptographically secure random secret
// of at least MinSecretBytes bytes
func GenerateSecret(bytes int) (string, error) {
	if bytes < MinSecretBytes {
		bytes = MinSecretBytes
	}
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
