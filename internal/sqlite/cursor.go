package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

// CursorRepository implements sync.Repository for SQLite
type CursorRepository struct {
	db *DB
}

// NewCursorRepository creates a new CursorRepository
func NewCursorRepository(db *DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// Get returns the stored cursor, or nil when the client has never synced.
func (r *CursorRepository) Get(ctx context.Context, ownerID, resourceName string) (*syncdom.Cursor, error) {
	var c syncdom.Cursor
	err := r.db.QueryRowContext(ctx, `
		SELECT owner_id, resource_name, last_seen_id, last_seen_at, updated_at
		FROM cursors
		WHERE owner_id = ? AND resource_name = ?
	`, ownerID, resourceName).Scan(&c.OwnerID, &c.ResourceName, &c.LastSeenID, &c.LastSeenAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	return &c, nil
}

// Upsert stores the cursor monotonically: a submitted last_seen_id older
// than the stored one leaves the row untouched. The winning row is returned
// so callers always see the server's view.
func (r *CursorRepository) Upsert(ctx context.Context, c syncdom.Cursor) (*syncdom.Cursor, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (owner_id, resource_name, last_seen_id, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, resource_name) DO UPDATE SET
			last_seen_id = MAX(last_seen_id, excluded.last_seen_id),
			last_seen_at = CASE
				WHEN excluded.last_seen_id > last_seen_id THEN excluded.last_seen_at
				ELSE last_seen_at
			END,
			updated_at = CURRENT_TIMESTAMP
	`, c.OwnerID, c.ResourceName, c.LastSeenID, c.LastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cursor: %w", err)
	}

	stored, err := r.Get(ctx, c.OwnerID, c.ResourceName)
	if err != nil {
		return nil, err
	}
	return stored, nil
}
