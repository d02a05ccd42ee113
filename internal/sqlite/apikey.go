package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// APIKeyRepository resolves bearer API keys to user ids. Keys are stored
// hashed; the plaintext never touches the database.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// ResolveUser returns the user id owning the key, updating last_used.
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)

	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) || userID == "" {
		return "", fmt.Errorf("unauthorized: invalid token")
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}

	return userID, nil
}

// Create registers a key for the user.
func (r *APIKeyRepository) Create(ctx context.Context, token, userID, description string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, user_id, description) VALUES (?, ?, ?)
	`, hashToken(token), userID, description)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
