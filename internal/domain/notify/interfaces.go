package notify

import (
	"context"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/conflict"
	"github.com/pulseboard/pulseboard/internal/domain/stream"
)

// Repository provides persistence operations for notifications.
type Repository interface {
	// CreateIfAbsent inserts unless a row with the same
	// (user_id, dedup_key, window_bucket) exists. Reports whether a row was
	// created; a conflicting insert is a silent no-op, not an error.
	CreateIfAbsent(ctx context.Context, n *Notification, windowBucket int64) (bool, error)
	// ExistsSince reports whether the user already has a notification with
	// the dedup key created at or after since.
	ExistsSince(ctx context.Context, userID, dedupKey string, since time.Time) (bool, error)
	List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)
	MarkRead(ctx context.Context, userID string, id int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID string, id int64) error
}

// StateRepository persists scheduler high-water marks so restarts resume at
// the last successful cycle boundary.
type StateRepository interface {
	HighWater(ctx context.Context, name string) (time.Time, error)
	SetHighWater(ctx context.Context, name string, t time.Time) error
}

// EventSource is the slice of the activity store the engine scans.
type EventSource interface {
	Query(ctx context.Context, opts activity.QueryOptions) ([]activity.Event, error)
}

// Detector finds conflicts for one event.
type Detector interface {
	FindConflicts(ctx context.Context, ev *activity.Event) ([]conflict.Match, error)
}

// Publisher pushes created notifications onto the live stream.
type Publisher interface {
	Publish(ctx context.Context, workspaceID, entityType, action string, payload any) (*stream.Event, error)
}

// Pruner trims the stream backlog; the engine runs it once per cycle.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
