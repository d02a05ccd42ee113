package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

// Service handles cursor bookkeeping and delta-sync queries for clients that
// reconnect intermittently.
type Service struct {
	cursors Repository
	events  EventSource
	logger  *slog.Logger
}

// NewService creates a new sync service.
func NewService(cursors Repository, events EventSource, logger *slog.Logger) *Service {
	return &Service{cursors: cursors, events: events, logger: logger}
}

// GetCursor returns the client's stored cursor, or nil when it has never
// synced this resource.
func (s *Service) GetCursor(ctx context.Context, ownerID, resourceName string) (*Cursor, error) {
	if ownerID == "" || resourceName == "" {
		return nil, fmt.Errorf("%w: owner_id and resource_name are required", ErrInvalidInput)
	}
	return s.cursors.Get(ctx, ownerID, resourceName)
}

// SetCursor records the client's progress. A submission older than the
// stored value is silently ignored and the stored row returned — regression
// attempts are not errors, to avoid client retry storms.
func (s *Service) SetCursor(ctx context.Context, ownerID, resourceName string, lastSeenID int64, lastSeenAt time.Time) (*Cursor, error) {
	if ownerID == "" || resourceName == "" {
		return nil, fmt.Errorf("%w: owner_id and resource_name are required", ErrInvalidInput)
	}
	if lastSeenID < 0 {
		return nil, fmt.Errorf("%w: last_seen_id must not be negative", ErrInvalidInput)
	}
	if lastSeenAt.IsZero() {
		lastSeenAt = time.Now()
	}
	return s.cursors.Upsert(ctx, Cursor{
		OwnerID:      ownerID,
		ResourceName: resourceName,
		LastSeenID:   lastSeenID,
		LastSeenAt:   lastSeenAt,
	})
}

// UpdatesSince returns events after the client's cursor in ascending id
// order, with no gap and no duplicate. The returned cursor covers the raw
// page before focus filtering, so advancement stays correct regardless of
// filter selection.
func (s *Service) UpdatesSince(ctx context.Context, req UpdatesRequest) (*UpdatesResult, error) {
	if req.ResourceName != ResourceCodeEvents {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, req.ResourceName)
	}

	sinceID := req.SinceID
	if sinceID == 0 && req.OwnerID != "" {
		stored, err := s.cursors.Get(ctx, req.OwnerID, req.ResourceName)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			sinceID = stored.LastSeenID
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	events, err := s.events.Query(ctx, activity.QueryOptions{
		SinceID:   sinceID,
		Ascending: true,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying updates: %w", err)
	}

	cursor := sinceID
	if len(events) > 0 {
		cursor = events[len(events)-1].ID
	}

	return &UpdatesResult{
		Events: applyFocus(events, req),
		Cursor: cursor,
	}, nil
}

// applyFocus filters the page for display after the id cut.
func applyFocus(events []activity.Event, req UpdatesRequest) []activity.Event {
	if len(req.FocusFiles) == 0 && len(req.FocusKinds) == 0 {
		return events
	}

	kinds := make(map[activity.Kind]struct{}, len(req.FocusKinds))
	for _, k := range req.FocusKinds {
		kinds[k] = struct{}{}
	}

	filtered := make([]activity.Event, 0, len(events))
	for _, ev := range events {
		if len(kinds) > 0 {
			if _, ok := kinds[ev.Kind]; !ok {
				continue
			}
		}
		if len(req.FocusFiles) > 0 && !matchesFilePrefix(ev.Files, req.FocusFiles) {
			continue
		}
		filtered = append(filtered, ev)
	}
	return filtered
}

func matchesFilePrefix(files, prefixes []string) bool {
	for _, f := range files {
		for _, p := range prefixes {
			if strings.HasPrefix(f, p) {
				return true
			}
		}
	}
	return false
}
