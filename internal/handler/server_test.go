package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/conflict"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	"github.com/pulseboard/pulseboard/internal/domain/stream"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
	"github.com/pulseboard/pulseboard/internal/sqlite"
)

type testEnv struct {
	e         *echo.Echo
	activity  *activity.Service
	notifRepo *sqlite.NotificationRepository
	broker    *stream.Broker
	keys      *sqlite.APIKeyRepository
}

func newTestServer(t *testing.T, authEnabled bool) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	activityRepo := sqlite.NewActivityRepository(db)
	notifRepo := sqlite.NewNotificationRepository(db)
	cursorRepo := sqlite.NewCursorRepository(db)
	streamRepo := sqlite.NewStreamRepository(db)
	keys := sqlite.NewAPIKeyRepository(db)

	activitySvc := activity.NewService(activityRepo, nil, 2*time.Minute, logger)
	detector := conflict.NewDetector(activitySvc, conflict.Config{
		FileWindow:        24 * time.Hour,
		SemanticWindow:    168 * time.Hour,
		SemanticThreshold: 0.85,
	}, logger)
	broker := stream.NewBroker(streamRepo, 10*time.Millisecond, logger)
	t.Cleanup(broker.Close)

	e := New(Config{
		Activity:      activitySvc,
		Detector:      detector,
		Notifications: notify.NewService(notifRepo, logger),
		Sync:          syncdom.NewService(cursorRepo, activitySvc, logger),
		Broker:        broker,
		Resolver:      keys,
		AuthEnabled:   authEnabled,
		Workspace:     "default",
		Heartbeat:     40 * time.Millisecond,
		Logger:        logger,
	})

	return &testEnv{e: e, activity: activitySvc, notifRepo: notifRepo, broker: broker, keys: keys}
}

func (env *testEnv) request(method, path, user string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (map[string]any, *APIError) {
	t.Helper()
	var env struct {
		Data  map[string]any `json:"data"`
		Error *APIError      `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data, env.Error
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, false)
	rec := env.request(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestAppendActivityEndpoint(t *testing.T) {
	env := newTestServer(t, false)

	rec := env.request(http.MethodPost, "/api/activity", "alice", map[string]any{
		"kind":    "edit",
		"summary": "refactor session handling",
		"files":   []string{"src/session.go"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data, apiErr := decodeEnvelope(t, rec)
	require.Nil(t, apiErr)
	require.Equal(t, float64(1), data["event_id"])
	require.Equal(t, true, data["is_significant"])

	// An immediate identical repeat is recorded but not significant
	rec = env.request(http.MethodPost, "/api/activity", "alice", map[string]any{
		"kind":    "edit",
		"summary": "refactor session handling",
		"files":   []string{"src/session.go"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data, _ = decodeEnvelope(t, rec)
	require.Equal(t, float64(2), data["event_id"])
	require.Equal(t, false, data["is_significant"])
}

func TestAppendActivityValidation(t *testing.T) {
	env := newTestServer(t, false)

	rec := env.request(http.MethodPost, "/api/activity", "alice", map[string]any{
		"summary": "missing kind",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, apiErr := decodeEnvelope(t, rec)
	require.NotNil(t, apiErr)
	require.Equal(t, "INVALID_INPUT", apiErr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/activity", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConflictsEndpoint(t *testing.T) {
	env := newTestServer(t, false)
	ctx := context.Background()

	_, err := env.activity.Append(ctx, &activity.Event{
		UserID:    "bob",
		Timestamp: time.Now().Add(-time.Hour),
		Kind:      activity.KindEdit,
		Summary:   "editing session store",
		Files:     []string{"src/session.go"},
	})
	require.NoError(t, err)

	subjectID, err := env.activity.Append(ctx, &activity.Event{
		UserID:    "alice",
		Timestamp: time.Now(),
		Kind:      activity.KindEdit,
		Summary:   "also touching sessions",
		Files:     []string{"src/session.go"},
	})
	require.NoError(t, err)

	rec := env.request(http.MethodGet, fmt.Sprintf("/api/conflicts?subject_event_id=%d", subjectID), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	conflicts := data["conflicts"].([]any)
	require.Len(t, conflicts, 1)
	match := conflicts[0].(map[string]any)
	require.Equal(t, "bob", match["other_user_id"])

	// Bad parameter and unknown event
	rec = env.request(http.MethodGet, "/api/conflicts?subject_event_id=abc", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodGet, "/api/conflicts?subject_event_id=999", "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestServer(t, false)
	ctx := context.Background()

	for i, severity := range []notify.Severity{notify.SeverityUrgent, notify.SeverityNormal} {
		n := &notify.Notification{
			UserID:   "alice",
			Type:     notify.TypeConflictFile,
			Severity: severity,
			DedupKey: fmt.Sprintf("k%d", i),
			Data:     []byte(`{}`),
		}
		created, err := env.notifRepo.CreateIfAbsent(ctx, n, int64(i))
		require.NoError(t, err)
		require.True(t, created)
	}

	rec := env.request(http.MethodGet, "/api/notifications", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	require.Equal(t, float64(2), data["total"])
	require.Equal(t, float64(1), data["urgent_count"])

	notifications := data["notifications"].([]any)
	first := notifications[0].(map[string]any)
	id := int64(first["id"].(float64))

	rec = env.request(http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(http.MethodGet, "/api/notifications?unread_only=true", "alice", nil)
	data, _ = decodeEnvelope(t, rec)
	require.Equal(t, float64(1), data["total"])

	rec = env.request(http.MethodPatch, "/api/notifications/mark-all-read", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = decodeEnvelope(t, rec)
	require.Equal(t, float64(1), data["updated"])

	rec = env.request(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", id), "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Unknown and malformed ids
	rec = env.request(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", id), "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.request(http.MethodPatch, "/api/notifications/abc/read", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Another user cannot see alice's notifications
	rec = env.request(http.MethodGet, "/api/notifications", "bob", nil)
	data, _ = decodeEnvelope(t, rec)
	require.Equal(t, float64(0), data["total"])
}

func TestCursorEndpoints(t *testing.T) {
	env := newTestServer(t, false)

	rec := env.request(http.MethodGet, "/api/cursor?resource_name=code_events", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	require.Nil(t, data["cursor"], "never-synced client reads a null cursor")

	rec = env.request(http.MethodPost, "/api/cursor", "alice", map[string]any{
		"resource_name": "code_events",
		"last_seen_id":  5,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = decodeEnvelope(t, rec)
	cursor := data["cursor"].(map[string]any)
	require.Equal(t, float64(5), cursor["last_seen_id"])
	require.Equal(t, "alice", cursor["owner_id"])

	// Regression attempts return the stored position
	rec = env.request(http.MethodPost, "/api/cursor", "alice", map[string]any{
		"resource_name": "code_events",
		"last_seen_id":  3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = decodeEnvelope(t, rec)
	cursor = data["cursor"].(map[string]any)
	require.Equal(t, float64(5), cursor["last_seen_id"])

	// Validation
	rec = env.request(http.MethodPost, "/api/cursor", "alice", map[string]any{"last_seen_id": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.request(http.MethodPost, "/api/cursor", "alice", map[string]any{
		"resource_name": "code_events",
		"last_seen_id":  -1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatesSinceCursorEndpoint(t *testing.T) {
	env := newTestServer(t, false)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, kind := range []activity.Kind{activity.KindEdit, activity.KindChat, activity.KindEdit} {
		_, err := env.activity.Append(ctx, &activity.Event{
			UserID:    "bob",
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Kind:      kind,
			Summary:   fmt.Sprintf("work %d", i),
			Files:     []string{"src/app.go"},
		})
		require.NoError(t, err)
	}

	rec := env.request(http.MethodGet, "/api/updates-since-cursor?resource_name=code_events&since_id=0", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	require.Len(t, data["events"].([]any), 3)
	require.Equal(t, float64(3), data["cursor"])

	// Resume from the middle of the log
	rec = env.request(http.MethodGet, "/api/updates-since-cursor?resource_name=code_events&since_id=1", "alice", nil)
	data, _ = decodeEnvelope(t, rec)
	events := data["events"].([]any)
	require.Len(t, events, 2)
	require.Equal(t, float64(2), events[0].(map[string]any)["id"])

	// Focus filters narrow the page but not the cursor
	rec = env.request(http.MethodGet, "/api/updates-since-cursor?resource_name=code_events&since_id=0&focus_kinds=edit", "alice", nil)
	data, _ = decodeEnvelope(t, rec)
	require.Len(t, data["events"].([]any), 2)
	require.Equal(t, float64(3), data["cursor"])

	rec = env.request(http.MethodGet, "/api/updates-since-cursor?resource_name=tasks", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, apiErr := decodeEnvelope(t, rec)
	require.Equal(t, "UNKNOWN_RESOURCE", apiErr.Code)
}

func TestAPIKeyAuthEnabled(t *testing.T) {
	env := newTestServer(t, true)
	require.NoError(t, env.keys.Create(context.Background(), "valid-token", "alice", "test key"))

	// No credentials
	rec := env.request(http.MethodGet, "/api/notifications", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer wrong")
	rec = httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token resolves the key's owner; the X-User-ID header is ignored
	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer valid-token")
	req.Header.Set("X-User-ID", "mallory")
	rec = httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamEventsEndpoint(t *testing.T) {
	env := newTestServer(t, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.broker.Publish(ctx, "default", stream.EntityNotification, stream.ActionCreate, map[string]int{"n": i})
		require.NoError(t, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?last_event_id=1", nil).WithContext(reqCtx)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	require.NotContains(t, body, "id: 1\n", "events at or before the resume id are not replayed")
	require.Contains(t, body, "id: 2\nevent: notification.create\ndata: ")
	require.Contains(t, body, ": heartbeat\n\n")
}

func TestStreamEventsBadResumeID(t *testing.T) {
	env := newTestServer(t, false)
	rec := env.request(http.MethodGet, "/api/events?last_event_id=abc", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteSSEEventFraming(t *testing.T) {
	var buf bytes.Buffer
	ev := stream.Event{
		WorkspaceID: "default",
		ID:          7,
		EntityType:  stream.EntityNotification,
		Action:      stream.ActionCreate,
		Payload:     []byte(`{"id":3}`),
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, writeSSEEvent(&buf, ev))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "id: 7\nevent: notification.create\ndata: "))
	require.True(t, strings.HasSuffix(out, "\n\n"))

	// The data line is one self-describing JSON document
	dataLine := strings.TrimSuffix(strings.SplitAfter(out, "data: ")[1], "\n\n")
	var decoded stream.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &decoded))
	require.Equal(t, int64(7), decoded.ID)
	require.Equal(t, stream.EntityNotification, decoded.EntityType)
}
