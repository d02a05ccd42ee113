package activity

import "errors"

var (
	// ErrInvalidInput indicates a malformed ingestion payload.
	ErrInvalidInput = errors.New("invalid activity event")
	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = errors.New("activity event not found")
	// ErrEmbeddingUnavailable indicates the embedding backend is down.
	// Non-fatal: ingestion proceeds without a vector and detection degrades
	// to file-overlap only.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
)
