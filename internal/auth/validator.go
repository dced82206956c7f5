package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shortener/internal/models"
	"shortener/internal/storage"
)

// CredentialStore is the persistence contract the validator needs. It is
// implemented by the storage package.
type CredentialStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error
	DeleteAPIKey(ctx context.Context, id string) error
}

// Validator verifies presented API key secrets against stored hashes and
// manages the key lifecycle (issue, revoke).
type Validator struct {
	store CredentialStore
}

// NewValidator creates a validator over the given credential store.
func NewValidator(store CredentialStore) *Validator {
	return &Validator{store: store}
}

// Validate hashes the presented secret and looks up a matching key by exact
// hash equality. A miss is (nil, false, nil) — unauthenticated, not an
// error; err is non-nil only for storage failures. On a hit the key's
// last-used timestamp is updated off the request's critical path.
func (v *Validator) Validate(ctx context.Context, presented string) (*models.APIKey, bool, error) {
	hash := models.HashAPIKey(presented)
	key, err := v.store.GetAPIKeyByHash(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("look up api key: %w", err)
	}

	go v.touch(key.ID)

	return key, true, nil
}

// touch records key usage without blocking the caller. Failures are logged
// and dropped; last-used is advisory metadata.
func (v *Validator) touch(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.store.TouchAPIKey(ctx, keyID, time.Now().UTC()); err != nil {
		slog.Debug("failed to update key last-used timestamp", "key_id", keyID, "error", err)
	}
}

// Issue generates a new random secret, persists its hash, and returns the
// record together with the plaintext. The plaintext is recoverable only
// from this return value; it is never stored or logged.
func (v *Validator) Issue(ctx context.Context, owner, name string) (*models.APIKey, string, error) {
	rawKey, err := models.GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}

	key := models.NewAPIKey(models.NewID(), owner, name, rawKey)
	if err := v.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("store api key: %w", err)
	}

	slog.Info("api key issued",
		"event", "security_audit",
		"action", "issue",
		"key_id", key.ID,
		"owner", key.Owner,
		"prefix", key.Prefix,
	)

	return key, rawKey, nil
}

// Revoke hard-deletes the key with the given ID and reports whether a
// record existed. A revoked secret stops validating immediately.
func (v *Validator) Revoke(ctx context.Context, id string) (bool, error) {
	err := v.store.DeleteAPIKey(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete api key: %w", err)
	}

	slog.Info("api key revoked",
		"event", "security_audit",
		"action", "revoke",
		"key_id", id,
	)

	return true, nil
}
