package notify

import (
	"encoding/json"
	"time"
)

// Type classifies a notification by its trigger.
type Type string

const (
	TypeConflictFile     Type = "conflict_file"
	TypeConflictSemantic Type = "conflict_semantic"
	TypeOther            Type = "other"
)

// Severity is the display urgency of a notification.
type Severity string

const (
	SeverityUrgent Severity = "urgent"
	SeverityNormal Severity = "normal"
)

// Notification is a durable, user-visible record derived from a conflict
// match. At most one notification per (user, dedup key) exists inside the
// cool-down window.
type Notification struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Type      Type            `json:"type"`
	Severity  Severity        `json:"severity"`
	DedupKey  string          `json:"dedup_key"`
	Data      json.RawMessage `json:"data"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Payload is the structured data attached to a conflict notification.
type Payload struct {
	RelatedUserID  string   `json:"related_user_id"`
	Files          []string `json:"files,omitempty"`
	Similarity     float64  `json:"similarity,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	SubjectEventID int64    `json:"subject_event_id"`
	OtherEventID   int64    `json:"other_event_id"`
}

// ListOptions provides filtering options for listing notifications.
type ListOptions struct {
	UnreadOnly bool
	Severity   Severity
	Type       Type
	Limit      int
}

// ListResult bundles a page of notifications with counts for badges.
type ListResult struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	UrgentCount   int            `json:"urgent_count"`
}
