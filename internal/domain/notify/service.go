package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Service handles user-facing notification operations. Creation is the
// engine's job; this covers listing and read-state toggles.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new notification service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns the user's notifications with total and urgent-unread counts.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	return s.repo.List(ctx, userID, opts)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID string, id int64) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification for the user read and returns
// how many were affected.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return n, nil
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	return nil
}
