package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// trivialKinds are never eligible to trigger conflict scanning.
var trivialKinds = map[Kind]struct{}{
	KindHeartbeat: {},
	KindPresence:  {},
}

// Service handles activity store operations.
type Service struct {
	repo      Repository
	embedder  EmbeddingProvider // optional
	dupWindow time.Duration
	logger    *slog.Logger
}

// NewService creates a new activity service. embedder may be nil when events
// arrive pre-embedded (or not at all).
func NewService(repo Repository, embedder EmbeddingProvider, dupWindow time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, embedder: embedder, dupWindow: dupWindow, logger: logger}
}

// Append validates and persists an event, computing its significance flag.
// Returns the assigned id.
func (s *Service) Append(ctx context.Context, ev *Event) (int64, error) {
	if ev == nil {
		return 0, ErrInvalidInput
	}
	if ev.UserID == "" {
		return 0, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if ev.Timestamp.IsZero() {
		return 0, fmt.Errorf("%w: timestamp is required", ErrInvalidInput)
	}
	if ev.Kind == "" {
		return 0, fmt.Errorf("%w: kind is required", ErrInvalidInput)
	}

	if !ev.HasEmbedding() && s.embedder != nil && ev.Summary != "" {
		vec, err := s.embedder.Embed(ctx, ev.Summary)
		switch {
		case errors.Is(err, ErrEmbeddingUnavailable):
			s.logger.Warn("embedding backend unavailable, storing event without vector", "user_id", ev.UserID)
		case err != nil:
			s.logger.Warn("embedding failed", "user_id", ev.UserID, "error", err)
		default:
			ev.Embedding = vec
		}
	}

	significant, err := s.isSignificant(ctx, ev)
	if err != nil {
		return 0, err
	}
	ev.IsSignificant = significant

	if err := s.repo.Append(ctx, ev); err != nil {
		return 0, fmt.Errorf("appending activity event: %w", err)
	}
	return ev.ID, nil
}

// Get returns one event by id.
func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	return s.repo.Get(ctx, id)
}

// Query lists events matching the given filters.
func (s *Service) Query(ctx context.Context, opts QueryOptions) ([]Event, error) {
	return s.repo.Query(ctx, opts)
}

// Delete soft-deletes an event. The row stays in the log but no longer
// surfaces in queries.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

// isSignificant applies the significance predicate: trivial kinds never
// qualify, and neither does a repeat of the user's immediately prior event
// inside the duplicate window.
func (s *Service) isSignificant(ctx context.Context, ev *Event) (bool, error) {
	if _, trivial := trivialKinds[ev.Kind]; trivial {
		return false, nil
	}

	prev, err := s.repo.LastByUser(ctx, ev.UserID)
	if err != nil {
		return false, fmt.Errorf("loading prior event: %w", err)
	}
	if prev == nil {
		return true, nil
	}
	if ev.Timestamp.Sub(prev.Timestamp) > s.dupWindow {
		return true, nil
	}
	if prev.Kind == ev.Kind && prev.Summary == ev.Summary && sameFiles(prev.Files, ev.Files) {
		return false, nil
	}
	return true, nil
}

func sameFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
