package activity

import "time"

// Kind classifies an activity event by the action that produced it.
type Kind string

const (
	KindEdit      Kind = "edit"
	KindSave      Kind = "save"
	KindCommit    Kind = "commit"
	KindChat      Kind = "chat"
	KindTask      Kind = "task"
	KindHeartbeat Kind = "heartbeat"
	KindPresence  Kind = "presence"
)

// Event is one observed unit of work. Events are append-only: once written
// they are immutable apart from soft-delete marking.
type Event struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          Kind      `json:"kind"`
	Summary       string    `json:"summary"`
	Files         []string  `json:"files,omitempty"`
	Embedding     []float32 `json:"-"`
	IsSignificant bool      `json:"is_significant"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasEmbedding reports whether the event carries a semantic vector.
func (e *Event) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// FileSet returns the event's files as a set for overlap checks.
func (e *Event) FileSet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.Files))
	for _, f := range e.Files {
		set[f] = struct{}{}
	}
	return set
}
