package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/stream"
)

// StreamRepository implements stream.Log for SQLite
type StreamRepository struct {
	db *DB
}

// NewStreamRepository creates a new StreamRepository
func NewStreamRepository(db *DB) *StreamRepository {
	return &StreamRepository{db: db}
}

// Append persists the event, assigning the next id in its workspace. Id
// allocation and insert happen in one statement, so concurrent writers
// serialize on SQLite's write lock and the per-workspace sequence stays
// gap-free.
func (r *StreamRepository) Append(ctx context.Context, ev *stream.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	payload := string(ev.Payload)
	if payload == "" {
		payload = "{}"
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO stream_events (workspace_id, id, entity_type, action, payload, created_at)
		VALUES (
			?,
			(SELECT COALESCE(MAX(id), 0) + 1 FROM stream_events WHERE workspace_id = ?),
			?, ?, ?, ?
		)
		RETURNING id
	`, ev.WorkspaceID, ev.WorkspaceID, ev.EntityType, ev.Action, payload, ev.CreatedAt).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("failed to append stream event: %w", err)
	}
	return nil
}

// After returns up to limit events with id > afterID, ascending.
func (r *StreamRepository) After(ctx context.Context, workspaceID string, afterID int64, limit int) ([]stream.Event, error) {
	if limit <= 0 {
		limit = 256
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT workspace_id, id, entity_type, action, payload, created_at
		FROM stream_events
		WHERE workspace_id = ? AND id > ?
		ORDER BY id ASC
		LIMIT ?
	`, workspaceID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream backlog: %w", err)
	}
	defer rows.Close()

	var events []stream.Event
	for rows.Next() {
		var ev stream.Event
		var payload string
		if err := rows.Scan(&ev.WorkspaceID, &ev.ID, &ev.EntityType, &ev.Action, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stream event: %w", err)
		}
		ev.Payload = []byte(payload)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stream rows: %w", err)
	}

	return events, nil
}

// LatestID returns the highest event id in the workspace, 0 when empty.
func (r *StreamRepository) LatestID(ctx context.Context, workspaceID string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM stream_events WHERE workspace_id = ?`,
		workspaceID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest stream id: %w", err)
	}
	return id, nil
}

// PruneBefore drops backlog rows older than cutoff. Each workspace's
// newest row is always kept, so the id sequence Append builds on survives
// pruning an idle workspace and never re-issues a delivered id.
func (r *StreamRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM stream_events
		WHERE created_at < ?
		AND id < (SELECT MAX(id) FROM stream_events s WHERE s.workspace_id = stream_events.workspace_id)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stream backlog: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
