package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to :memory: would get its own private database
	if dataSourceName == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// WAL so the scheduler and connection handlers don't serialize on reads
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. The server runs this at startup; the
// statements are idempotent so a restart over an existing file is a no-op.
func (db *DB) RunMigrations() error {
	migration := `
-- Append-only activity log
CREATE TABLE IF NOT EXISTS activity_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    ts TIMESTAMP NOT NULL,
    kind TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    files TEXT,
    embedding BLOB,
    is_significant INTEGER NOT NULL DEFAULT 0,
    deleted_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_activity_user_ts ON activity_events(user_id, ts);
CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity_events(ts);
CREATE INDEX IF NOT EXISTS idx_activity_significant ON activity_events(is_significant, ts);

-- Notifications. The unique index is the dedup correctness guarantee:
-- concurrent engine cycles race to insert and exactly one wins.
CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    severity TEXT NOT NULL CHECK(severity IN ('urgent', 'normal')),
    dedup_key TEXT NOT NULL,
    window_bucket INTEGER NOT NULL,
    data TEXT NOT NULL DEFAULT '{}',
    is_read INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_dedup
    ON notifications(user_id, dedup_key, window_bucket);
CREATE INDEX IF NOT EXISTS idx_notification_user ON notifications(user_id, is_read);

-- Per-client resume bookmarks
CREATE TABLE IF NOT EXISTS cursors (
    owner_id TEXT NOT NULL,
    resource_name TEXT NOT NULL,
    last_seen_id INTEGER NOT NULL,
    last_seen_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (owner_id, resource_name)
);

-- Shared stream backlog, tailed by every server process
CREATE TABLE IF NOT EXISTS stream_events (
    workspace_id TEXT NOT NULL,
    id INTEGER NOT NULL,
    entity_type TEXT NOT NULL,
    action TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_stream_created ON stream_events(created_at);

-- Scheduler high-water marks, persisted so restarts resume correctly
CREATE TABLE IF NOT EXISTS engine_state (
    name TEXT PRIMARY KEY,
    high_water TIMESTAMP NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- API keys for authentication
CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_used TIMESTAMP,
    description TEXT
);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
