package stream

import (
	"encoding/json"
	"time"
)

// Entity types carried on the live channel.
const (
	EntityMessage      = "message"
	EntityTask         = "task"
	EntityNotification = "notification"
)

// Actions carried on the live channel.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one unit pushed over the live channel. Ids are monotonic and
// gap-free per workspace: a client that resumes from id N receives every
// event with id > N exactly once.
type Event struct {
	WorkspaceID string          `json:"workspace_id"`
	ID          int64           `json:"id"`
	EntityType  string          `json:"entity_type"`
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}
