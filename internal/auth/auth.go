// Package auth provides API-key authentication for creditrail.
//
// Authentication model:
//   - Webhook endpoint: authenticated by provider signature, not API key
//   - Client endpoints (orders, verify, balance): require an API key
//   - Admin endpoints: require the X-Admin-Secret header
//
// API keys are issued at signup; only their SHA-256 hash is stored.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	ErrNoAPIKey      = errors.New("API key required")
	ErrInvalidAPIKey = errors.New("invalid or expired API key")
	ErrKeyNotFound   = errors.New("API key not found")
)

// APIKey represents an issued API key.
type APIKey struct {
	ID        string     `json:"id"`
	Hash      string     `json:"-"` // SHA-256 hash of the raw key
	UserID    string     `json:"userId"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  time.Time  `json:"lastUsed,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Revoked   bool       `json:"revoked"`
}

// Store persists API keys.
type Store interface {
	Create(ctx context.Context, key *APIKey) error
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	GetByUser(ctx context.Context, userID string) ([]*APIKey, error)
	Update(ctx context.Context, key *APIKey) error
	Delete(ctx context.Context, id string) error
}

// Manager handles key issuance and validation.
type Manager struct {
	store Store
}

// NewManager creates a new auth manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// GenerateKey creates a new API key for a user.
// Returns the raw key (shown once) and the stored metadata.
func (m *Manager) GenerateKey(ctx context.Context, userID, name string) (rawKey string, key *APIKey, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}

	rawKey = "sk_" + hex.EncodeToString(b)

	key = &APIKey{
		ID:        "ak_" + hex.EncodeToString(b[:8]),
		Hash:      hashKey(rawKey),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := m.store.Create(ctx, key); err != nil {
		return "", nil, err
	}

	return rawKey, key, nil
}

// ValidateKey validates a raw key and returns its metadata.
func (m *Manager) ValidateKey(ctx context.Context, rawKey string) (*APIKey, error) {
	if rawKey == "" {
		return nil, ErrNoAPIKey
	}

	rawKey = strings.TrimPrefix(rawKey, "Bearer ")
	rawKey = strings.TrimSpace(rawKey)

	if !strings.HasPrefix(rawKey, "sk_") {
		return nil, ErrInvalidAPIKey
	}

	key, err := m.store.GetByHash(ctx, hashKey(rawKey))
	if err != nil {
		return nil, ErrInvalidAPIKey
	}

	if key.Revoked {
		return nil, ErrInvalidAPIKey
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrInvalidAPIKey
	}

	// Best-effort last-used update; validation does not depend on it.
	key.LastUsed = time.Now()
	_ = m.store.Update(ctx, key)

	return key, nil
}

// RevokeKey marks a key as revoked. Only the key's owner may revoke it.
func (m *Manager) RevokeKey(ctx context.Context, userID, keyID string) error {
	keys, err := m.store.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.ID == keyID {
			k.Revoked = true
			return m.store.Update(ctx, k)
		}
	}
	return ErrKeyNotFound
}

// ListKeys returns a user's keys.
func (m *Manager) ListKeys(ctx context.Context, userID string) ([]*APIKey, error) {
	return m.store.GetByUser(ctx, userID)
}

func hashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
