package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/notify"
)

// NotificationRepository implements notify.Repository for SQLite
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateIfAbsent inserts the notification unless one with the same
// (user_id, dedup_key, window_bucket) already exists. The unique index makes
// this safe under concurrent engine instances; a losing insert is a no-op.
func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *notify.Notification, windowBucket int64) (bool, error) {
	createdAt := time.Now()
	data := string(n.Data)
	if data == "" {
		data = "{}"
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, severity, dedup_key, window_bucket, data, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(user_id, dedup_key, window_bucket) DO NOTHING
	`, n.UserID, n.Type, n.Severity, n.DedupKey, windowBucket, data, createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		n.ID = id
	}
	n.CreatedAt = createdAt
	return true, nil
}

// ExistsSince reports whether the user has a notification with the dedup key
// created at or after since.
func (r *NotificationRepository) ExistsSince(ctx context.Context, userID, dedupKey string, since time.Time) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND dedup_key = ? AND created_at >= ?
	`, userID, dedupKey, since).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification dedup: %w", err)
	}
	return count > 0, nil
}

// List returns notifications for the user, newest first, with the total and
// urgent-unread counts computed over the unpaged set.
func (r *NotificationRepository) List(ctx context.Context, userID string, opts notify.ListOptions) (*notify.ListResult, error) {
	conditions := []string{"user_id = ?"}
	args := []any{userID}

	if opts.UnreadOnly {
		conditions = append(conditions, "is_read = 0")
	}
	if opts.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, opts.Severity)
	}
	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	var urgent int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND severity = 'urgent' AND is_read = 0
	`, userID).Scan(&urgent); err != nil {
		return nil, fmt.Errorf("failed to count urgent notifications: %w", err)
	}

	query := `
		SELECT id, user_id, type, severity, dedup_key, data, is_read, created_at
		FROM notifications
		WHERE ` + where + `
		ORDER BY id DESC
	`
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notify.Notification{}
	for rows.Next() {
		var n notify.Notification
		var data string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Severity, &n.DedupKey, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = []byte(data)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}

	return &notify.ListResult{
		Notifications: notifications,
		Total:         total,
		UrgentCount:   urgent,
	}, nil
}

// MarkRead marks one notification read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notify.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks all of the user's unread notifications read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Delete removes one notification.
func (r *NotificationRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notify.ErrNotificationNotFound
	}
	return nil
}
