package sync

import (
	"context"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

// Repository provides persistence operations for cursors.
type Repository interface {
	// Get returns the stored cursor, or nil when none exists.
	Get(ctx context.Context, ownerID, resourceName string) (*Cursor, error)
	// Upsert stores the cursor unless it would regress the stored
	// last_seen_id, and returns the winning row either way.
	Upsert(ctx context.Context, c Cursor) (*Cursor, error)
}

// EventSource is the slice of the activity store delta sync paginates.
type EventSource interface {
	Query(ctx context.Context, opts activity.QueryOptions) ([]activity.Event, error)
}
