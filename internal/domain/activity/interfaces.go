package activity

import "context"

// Repository provides persistence operations for activity events.
type Repository interface {
	Append(ctx context.Context, ev *Event) error
	Get(ctx context.Context, id int64) (*Event, error)
	Query(ctx context.Context, opts QueryOptions) ([]Event, error)
	// LastByUser returns the user's most recent event, or nil when the user
	// has no history.
	LastByUser(ctx context.Context, userID string) (*Event, error)
	SoftDelete(ctx context.Context, id int64) error
}

// EmbeddingProvider computes a semantic vector for free text. Implementations
// return ErrEmbeddingUnavailable (wrapped or bare) when the backend is down;
// callers degrade rather than fail.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
