package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/leadmail/internal/model"
)

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, account_id, lead_id, kind, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AccountID, n.LeadID, string(n.Kind), n.Message,
		boolToInt(n.Read), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// GetUnreadNotifications retrieves all unread notifications, newest first.
func (s *SQLiteStore) GetUnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	var notifications []model.Notification
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications WHERE read = 0 ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying unread notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}
