package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// APIKey represents a stored API key. The raw key value is never persisted;
// only its SHA-256 hex hash and an 8-character display prefix are stored.
// Records are immutable after issuance except for LastUsedAt, which is
// touched on each successful validation. Revocation is a hard delete.
type APIKey struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"key_hash"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// NewAPIKey creates a new APIKey record from a raw key string.
func NewAPIKey(id, owner, name, rawKey string) *APIKey {
	prefix := rawKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return &APIKey{
		ID:        id,
		Owner:     owner,
		Name:      name,
		KeyHash:   HashAPIKey(rawKey),
		Prefix:    prefix,
		CreatedAt: time.Now().UTC(),
	}
}

// GenerateAPIKey produces a new random API key in the format shr_<44 url-safe base64 chars>.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 33) // 33 bytes → 44 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "shr_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey computes the SHA-256 hex digest of a raw API key.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// NewID generates a new UUID v4 for use as a record identifier.
func NewID() string {
	return uuid.New().String()
}
