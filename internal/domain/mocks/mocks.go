package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/conflict"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	"github.com/pulseboard/pulseboard/internal/domain/stream"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Append(ctx context.Context, ev *activity.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *ActivityRepository) Get(ctx context.Context, id int64) (*activity.Event, error) {
	args := m.Called(ctx, id)
	if ev, ok := args.Get(0).(*activity.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) Query(ctx context.Context, opts activity.QueryOptions) ([]activity.Event, error) {
	args := m.Called(ctx, opts)
	if events, ok := args.Get(0).([]activity.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) LastByUser(ctx context.Context, userID string) (*activity.Event, error) {
	args := m.Called(ctx, userID)
	if ev, ok := args.Get(0).(*activity.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) SoftDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// EmbeddingProvider is a mock for activity.EmbeddingProvider.
type EmbeddingProvider struct {
	mock.Mock
}

func (m *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if vec, ok := args.Get(0).([]float32); ok {
		return vec, args.Error(1)
	}
	return nil, args.Error(1)
}

// EventSource is a mock for the activity query slice consumed by the conflict
// detector, the notification engine and the sync service.
type EventSource struct {
	mock.Mock
}

func (m *EventSource) Query(ctx context.Context, opts activity.QueryOptions) ([]activity.Event, error) {
	args := m.Called(ctx, opts)
	if events, ok := args.Get(0).([]activity.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

// NotificationRepository is a mock for notify.Repository.
type NotificationRepository struct {
	mock.Mock
}

func (m *NotificationRepository) CreateIfAbsent(ctx context.Context, n *notify.Notification, windowBucket int64) (bool, error) {
	args := m.Called(ctx, n, windowBucket)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepository) ExistsSince(ctx context.Context, userID, dedupKey string, since time.Time) (bool, error) {
	args := m.Called(ctx, userID, dedupKey, since)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepository) List(ctx context.Context, userID string, opts notify.ListOptions) (*notify.ListResult, error) {
	args := m.Called(ctx, userID, opts)
	if result, ok := args.Get(0).(*notify.ListResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *NotificationRepository) MarkRead(ctx context.Context, userID string, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) Delete(ctx context.Context, userID string, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

// StateRepository is a mock for notify.StateRepository.
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) HighWater(ctx context.Context, name string) (time.Time, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *StateRepository) SetHighWater(ctx context.Context, name string, t time.Time) error {
	args := m.Called(ctx, name, t)
	return args.Error(0)
}

// ConflictDetector is a mock for notify.Detector.
type ConflictDetector struct {
	mock.Mock
}

func (m *ConflictDetector) FindConflicts(ctx context.Context, ev *activity.Event) ([]conflict.Match, error) {
	args := m.Called(ctx, ev)
	if matches, ok := args.Get(0).([]conflict.Match); ok {
		return matches, args.Error(1)
	}
	return nil, args.Error(1)
}

// StreamPublisher is a mock for notify.Publisher.
type StreamPublisher struct {
	mock.Mock
}

func (m *StreamPublisher) Publish(ctx context.Context, workspaceID, entityType, action string, payload any) (*stream.Event, error) {
	args := m.Called(ctx, workspaceID, entityType, action, payload)
	if ev, ok := args.Get(0).(*stream.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

// StreamPruner is a mock for notify.Pruner.
type StreamPruner struct {
	mock.Mock
}

func (m *StreamPruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// CursorRepository is a mock for sync.Repository.
type CursorRepository struct {
	mock.Mock
}

func (m *CursorRepository) Get(ctx context.Context, ownerID, resourceName string) (*syncdom.Cursor, error) {
	args := m.Called(ctx, ownerID, resourceName)
	if c, ok := args.Get(0).(*syncdom.Cursor); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CursorRepository) Upsert(ctx context.Context, c syncdom.Cursor) (*syncdom.Cursor, error) {
	args := m.Called(ctx, c)
	if stored, ok := args.Get(0).(*syncdom.Cursor); ok {
		return stored, args.Error(1)
	}
	return nil, args.Error(1)
}
