package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	// Verify all tables were created
	tables := []string{
		"activity_events",
		"notifications",
		"cursors",
		"stream_events",
		"engine_state",
		"api_keys",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

// TestMigrationsIdempotent verifies a restart over an existing schema is a no-op
func TestMigrationsIdempotent(t *testing.T) {
	db := NewTestDB(t)

	err := db.RunMigrations()
	require.NoError(t, err, "second migration run should succeed")
}

// TestNotificationDedupIndex verifies the unique index that backs dedup
func TestNotificationDedupIndex(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, severity, dedup_key, window_bucket, data, created_at)
		VALUES ('alice', 'conflict_file', 'urgent', 'k1', 100, '{}', ?)
	`, time.Now())
	require.NoError(t, err)

	// Same key, same bucket - constraint violation
	_, err = db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, severity, dedup_key, window_bucket, data, created_at)
		VALUES ('alice', 'conflict_file', 'urgent', 'k1', 100, '{}', ?)
	`, time.Now())
	require.Error(t, err, "duplicate (user, key, bucket) should be rejected")

	// Same key, next bucket - allowed
	_, err = db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, severity, dedup_key, window_bucket, data, created_at)
		VALUES ('alice', 'conflict_file', 'urgent', 'k1', 101, '{}', ?)
	`, time.Now())
	require.NoError(t, err)
}

// TestNotificationSeverityCheck verifies the severity constraint
func TestNotificationSeverityCheck(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, severity, dedup_key, window_bucket, data, created_at)
		VALUES ('alice', 'conflict_file', 'critical', 'k1', 100, '{}', ?)
	`, time.Now())
	require.Error(t, err, "should fail with invalid severity")
}

// TestStreamEventsTable verifies the composite primary key on the backlog
func TestStreamEventsTable(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO stream_events (workspace_id, id, entity_type, action, payload, created_at)
		VALUES ('ws1', 1, 'notification', 'create', '{}', ?)
	`, time.Now())
	require.NoError(t, err)

	// Same id in another workspace is fine
	_, err = db.ExecContext(ctx, `
		INSERT INTO stream_events (workspace_id, id, entity_type, action, payload, created_at)
		VALUES ('ws2', 1, 'notification', 'create', '{}', ?)
	`, time.Now())
	require.NoError(t, err)

	// Same (workspace, id) is not
	_, err = db.ExecContext(ctx, `
		INSERT INTO stream_events (workspace_id, id, entity_type, action, payload, created_at)
		VALUES ('ws1', 1, 'notification', 'create', '{}', ?)
	`, time.Now())
	require.Error(t, err, "duplicate (workspace, id) should be rejected")
}
