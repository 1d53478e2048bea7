package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/strumline/guitar-crm-api/internal/models"
)

// NotificationRepository manages in-app notifications and per-user
// notification preferences.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, body, read, created_at)
        VALUES (:id, :user_id, :type, :title, :body, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's notifications, newest first. unreadOnly
// narrows to unread rows.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT id, user_id, type, title, body, read, read_at, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += " AND read = FALSE"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns how many unread notifications a user has.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read, scoped to the owner. Returns false
// when no row matched.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $3 WHERE id = $1 AND user_id = $2 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, userID, readAt)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead marks every unread notification for a user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) error {
	const query = `UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, readAt); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// GetPreferences returns a user's notification preferences.
func (r *NotificationRepository) GetPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	const query = `SELECT user_id, type, enabled, updated_at FROM notification_preferences WHERE user_id = $1 ORDER BY type ASC`
	var prefs []models.NotificationPreference
	if err := r.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

// UpsertPreference sets a user's opt-in for one notification type.
func (r *NotificationRepository) UpsertPreference(ctx context.Context, pref *models.NotificationPreference) error {
	pref.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO notification_preferences (user_id, type, enabled, updated_at)
        VALUES (:user_id, :type, :enabled, :updated_at)
        ON CONFLICT (user_id, type) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// Enabled reports whether a user receives the given notification type.
// Absence of a preference row means enabled.
func (r *NotificationRepository) Enabled(ctx context.Context, userID, notificationType string) (bool, error) {
	const query = `SELECT enabled FROM notification_preferences WHERE user_id = $1 AND type = $2`
	var enabled bool
	err := r.db.GetContext(ctx, &enabled, query, userID, notificationType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("preference lookup: %w", err)
	}
	return enabled, nil
}
