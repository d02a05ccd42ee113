package sync

import (
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

// ResourceCodeEvents is the activity-log resource clients paginate.
const ResourceCodeEvents = "code_events"

// Cursor is a per-client, per-resource bookmark. Cursors only ever move
// forward: the server never hands back a value older than one the client
// already holds.
type Cursor struct {
	OwnerID      string    `json:"owner_id"`
	ResourceName string    `json:"resource_name"`
	LastSeenID   int64     `json:"last_seen_id"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpdatesRequest describes one delta-sync query.
type UpdatesRequest struct {
	OwnerID      string
	ResourceName string
	// SinceID overrides the stored cursor when > 0. Semantics: the minimum
	// id the client has not yet processed; results are id > SinceID.
	SinceID int64
	Limit   int
	// Focus filters narrow what is returned but never affect cursor
	// advancement: they apply after the id-ordering cut.
	FocusFiles []string // path prefixes
	FocusKinds []activity.Kind
}

// UpdatesResult is a page of events plus the cursor value covering the page.
type UpdatesResult struct {
	Events []activity.Event `json:"events"`
	// Cursor is the highest id in the raw page (pre-filter), or the request
	// cursor when the page was empty. Submitting it via SetCursor resumes
	// with no gap and no duplicate.
	Cursor int64 `json:"cursor"`
}
