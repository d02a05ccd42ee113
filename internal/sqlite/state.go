package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StateRepository implements notify.StateRepository for SQLite
type StateRepository struct {
	db *DB
}

// NewStateRepository creates a new StateRepository
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

// HighWater returns the stored mark for name, or the zero time when the
// engine has never completed a cycle.
func (r *StateRepository) HighWater(ctx context.Context, name string) (time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT high_water FROM engine_state WHERE name = ?`, name).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read high-water mark: %w", err)
	}
	return t, nil
}

// SetHighWater stores the mark for name.
func (r *StateRepository) SetHighWater(ctx context.Context, name string, t time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO engine_state (name, high_water, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			high_water = excluded.high_water,
			updated_at = CURRENT_TIMESTAMP
	`, name, t)
	if err != nil {
		return fmt.Errorf("failed to store high-water mark: %w", err)
	}
	return nil
}
