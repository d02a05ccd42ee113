package stream

import (
	"context"
	"time"
)

// Log is the durable, shared event backlog. It is the single source of truth
// for delivery: every process's push loop is a stateless reader over it.
type Log interface {
	// Append persists the event and assigns the next id for its workspace.
	Append(ctx context.Context, ev *Event) error
	// After returns up to limit events with id > afterID, ascending.
	After(ctx context.Context, workspaceID string, afterID int64, limit int) ([]Event, error)
	// LatestID returns the highest id in the workspace, 0 when empty.
	LatestID(ctx context.Context, workspaceID string) (int64, error)
	// PruneBefore drops backlog older than cutoff and reports rows removed.
	// Implementations must preserve each workspace's id sequence across
	// pruning: ids stay strictly increasing for the workspace's lifetime.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
