package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyPrefix    = "ra_"
	apiKeyBytes     = 24
	lookupPrefixLen = 11
)

// ErrInvalidAPIKey indicates the presented key does not match the stored hash.
var ErrInvalidAPIKey = errors.New("security: invalid api key")

// GenerateRandomString returns n random bytes hex-encoded.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("security: invalid length %d", n)
	}
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: read random: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateAPIKey returns a new plaintext API key.
func GenerateAPIKey() (string, error) {
	token, errGenerate := GenerateRandomString(apiKeyBytes)
	if errGenerate != nil {
		return "", errGenerate
	}
	return apiKeyPrefix + token, nil
}

// APIKeyLookupPrefix returns the indexed prefix stored next to the hash.
func APIKeyLookupPrefix(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= lookupPrefixLen {
		return key
	}
	return key[:lookupPrefixLen]
}

// HashAPIKey hashes a plaintext key with bcrypt.
func HashAPIKey(key string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(key)), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("security: hash api key: %w", errHash)
	}
	return string(hash), nil
}

// CheckAPIKey compares a plaintext key against its bcrypt hash.
func CheckAPIKey(hash, key string) error {
	if errCompare := bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(key))); errCompare != nil {
		return ErrInvalidAPIKey
	}
	return nil
}
