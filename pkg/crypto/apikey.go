package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const apiKeyBytes = 24

// GenerateAPIKey returns a random endpoint API key with a stable prefix.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "myk_" + hex.EncodeToString(buf), nil
}
