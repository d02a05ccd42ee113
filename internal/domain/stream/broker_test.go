package stream_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/domain/stream"
	"github.com/pulseboard/pulseboard/internal/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLog(t *testing.T) *sqlite.StreamRepository {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	return sqlite.NewStreamRepository(db)
}

func recvEvent(t *testing.T, sub *stream.Subscription) stream.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return stream.Event{}
	}
}

func requireNoEvent(t *testing.T, sub *stream.Subscription, wait time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event %d for %s.%s", ev.ID, ev.EntityType, ev.Action)
		}
	case <-time.After(wait):
	}
}

func TestBroker_ReplayThenFollow(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer b.Close()
	ctx := context.Background()

	// Backlog written before the client connects
	for i := 0; i < 3; i++ {
		_, err := b.Publish(ctx, "ws1", stream.EntityNotification, stream.ActionCreate, map[string]int{"n": i})
		require.NoError(t, err)
	}

	sub, err := b.Subscribe(ctx, "ws1", 1)
	require.NoError(t, err)
	defer sub.Close()

	require.Equal(t, int64(2), recvEvent(t, sub).ID, "replay starts after the resume id")
	require.Equal(t, int64(3), recvEvent(t, sub).ID)

	// Live tail follows with no gap
	_, err = b.Publish(ctx, "ws1", stream.EntityNotification, stream.ActionCreate, map[string]int{"n": 3})
	require.NoError(t, err)
	require.Equal(t, int64(4), recvEvent(t, sub).ID)
}

func TestBroker_SubscribeFromZero(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer b.Close()
	ctx := context.Background()

	_, err := b.Publish(ctx, "ws1", stream.EntityTask, stream.ActionUpdate, nil)
	require.NoError(t, err)

	// No resume id: the retained backlog is skipped, only new events arrive.
	sub, err := b.Subscribe(ctx, "ws1", 0)
	require.NoError(t, err)
	defer sub.Close()

	requireNoEvent(t, sub, 100*time.Millisecond)

	_, err = b.Publish(ctx, "ws1", stream.EntityTask, stream.ActionUpdate, nil)
	require.NoError(t, err)

	ev := recvEvent(t, sub)
	require.Equal(t, int64(2), ev.ID)
	require.Equal(t, stream.EntityTask, ev.EntityType)
	require.Equal(t, stream.ActionUpdate, ev.Action)
}

func TestBroker_NoDuplicateNoGap(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer b.Close()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "ws1", 0)
	require.NoError(t, err)
	defer sub.Close()

	const total = 20
	go func() {
		for i := 0; i < total; i++ {
			b.Publish(ctx, "ws1", stream.EntityMessage, stream.ActionCreate, map[string]int{"n": i})
		}
	}()

	for i := int64(1); i <= total; i++ {
		require.Equal(t, i, recvEvent(t, sub).ID, "delivery must be dense and in order")
	}
}

func TestBroker_CrossInstanceDelivery(t *testing.T) {
	// Two broker instances over one shared log, standing in for two server
	// processes. The subscriber is on A, the publisher on B; delivery rides
	// the poll, not the in-process nudge.
	log := newTestLog(t)
	a := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer a.Close()
	bb := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer bb.Close()
	ctx := context.Background()

	sub, err := a.Subscribe(ctx, "ws1", 0)
	require.NoError(t, err)
	defer sub.Close()

	_, err = bb.Publish(ctx, "ws1", stream.EntityNotification, stream.ActionCreate, map[string]string{"from": "b"})
	require.NoError(t, err)

	ev := recvEvent(t, sub)
	require.Equal(t, int64(1), ev.ID)
	require.JSONEq(t, `{"from":"b"}`, string(ev.Payload))
}

func TestBroker_WorkspaceIsolation(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer b.Close()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "ws1", 0)
	require.NoError(t, err)
	defer sub.Close()

	_, err = b.Publish(ctx, "ws2", stream.EntityNotification, stream.ActionCreate, nil)
	require.NoError(t, err)

	requireNoEvent(t, sub, 100*time.Millisecond)
}

func TestBroker_CloseEndsSubscription(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "ws1", 0)
	require.NoError(t, err)

	b.Close()

	select {
	case _, ok := <-sub.Events():
		require.False(t, ok, "channel must close when the broker shuts down")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBroker_ContextCancelEndsSubscription(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "ws1", 0)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-sub.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBroker_RequiresWorkspace(t *testing.T) {
	log := newTestLog(t)
	b := stream.NewBroker(log, 10*time.Millisecond, testLogger())
	defer b.Close()

	_, err := b.Subscribe(context.Background(), "", 0)
	require.Error(t, err)
}
