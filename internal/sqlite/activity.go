package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts a new activity event and assigns its id.
func (r *ActivityRepository) Append(ctx context.Context, ev *activity.Event) error {
	createdAt := time.Now()

	var files any
	if len(ev.Files) > 0 {
		data, err := json.Marshal(ev.Files)
		if err != nil {
			return fmt.Errorf("failed to encode files: %w", err)
		}
		files = string(data)
	}

	query := `
		INSERT INTO activity_events (
			user_id, ts, kind, summary, files, embedding, is_significant, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		ev.UserID,
		ev.Timestamp,
		ev.Kind,
		ev.Summary,
		files,
		encodeEmbedding(ev.Embedding),
		ev.IsSignificant,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		ev.ID = id
	}
	ev.CreatedAt = createdAt

	return nil
}

// Get returns one event by id, excluding soft-deleted rows.
func (r *ActivityRepository) Get(ctx context.Context, id int64) (*activity.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ts, kind, summary, files, embedding, is_significant, created_at
		FROM activity_events
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, activity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity event: %w", err)
	}
	return ev, nil
}

// Query returns events matching the given filters, ordered by id.
func (r *ActivityRepository) Query(ctx context.Context, opts activity.QueryOptions) ([]activity.Event, error) {
	query := `
		SELECT id, user_id, ts, kind, summary, files, embedding, is_significant, created_at
		FROM activity_events
		WHERE deleted_at IS NULL
	`

	args := []any{}
	conditions := []string{}

	if opts.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.ExcludeUserID != "" {
		conditions = append(conditions, "user_id != ?")
		args = append(args, opts.ExcludeUserID)
	}
	if len(opts.Kinds) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Kinds)), ",")
		conditions = append(conditions, "kind IN ("+placeholders+")")
		for _, k := range opts.Kinds {
			args = append(args, k)
		}
	}
	if opts.SinceID > 0 {
		conditions = append(conditions, "id > ?")
		args = append(args, opts.SinceID)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "ts > ?")
		args = append(args, opts.Since)
	}
	if !opts.CreatedSince.IsZero() {
		conditions = append(conditions, "created_at > ?")
		args = append(args, opts.CreatedSince)
	}
	if opts.OnlySignificant {
		conditions = append(conditions, "is_significant = 1")
	}
	if opts.RequireEmbedding {
		conditions = append(conditions, "embedding IS NOT NULL")
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	// A since-id query is a resume: always ascending so pages are stable.
	if opts.Ascending || opts.SinceID > 0 {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	var events []activity.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return events, nil
}

// LastByUser returns the user's most recent event by timestamp, or nil.
func (r *ActivityRepository) LastByUser(ctx context.Context, userID string) (*activity.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ts, kind, summary, files, embedding, is_significant, created_at
		FROM activity_events
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY id DESC
		LIMIT 1
	`, userID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last event: %w", err)
	}
	return ev, nil
}

// SoftDelete marks an event deleted without removing the row.
func (r *ActivityRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE activity_events SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete activity event: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return activity.ErrEventNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*activity.Event, error) {
	var ev activity.Event
	var files sql.NullString
	var embedding []byte
	if err := row.Scan(
		&ev.ID,
		&ev.UserID,
		&ev.Timestamp,
		&ev.Kind,
		&ev.Summary,
		&files,
		&embedding,
		&ev.IsSignificant,
		&ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	if files.Valid && files.String != "" {
		if err := json.Unmarshal([]byte(files.String), &ev.Files); err != nil {
			return nil, fmt.Errorf("decoding files: %w", err)
		}
	}
	ev.Embedding = decodeEmbedding(embedding)
	return &ev, nil
}

// encodeEmbedding packs a vector as little-endian float32 bytes. Returns nil
// for an empty vector so the column stays NULL.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
