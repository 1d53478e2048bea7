package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
	"github.com/strumline/guitar-crm-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) error
	GetPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref *models.NotificationPreference) error
	Enabled(ctx context.Context, userID, notificationType string) (bool, error)
}

// PreferenceRequest toggles one notification type for the caller.
type PreferenceRequest struct {
	Type    string `json:"type" validate:"required"`
	Enabled bool   `json:"enabled"`
}

// NotificationService delivers in-app notifications. Deliveries run through
// an in-process queue so digest fan-out does not block the scheduler.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the notification service. Call Start
// before enqueueing deliveries.
func NewNotificationService(repo notificationRepository, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handleDelivery, cfg)
	return s
}

// Start spins up the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Deliver queues a notification for a user, honouring their preference for
// the type. Returns without error when the user has opted out.
func (s *NotificationService) Deliver(ctx context.Context, notification models.Notification) error {
	enabled, err := s.repo.Enabled(ctx, notification.UserID, notification.Type)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check notification preference")
	}
	if !enabled {
		return nil
	}

	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    notification.Type,
		Payload: notification,
	}
	if err := s.queue.Enqueue(job); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue notification")
	}
	return nil
}

// ListForUser returns the caller's notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, int, error) {
	notifications, err := s.repo.ListForUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return notifications, unread, nil
}

// MarkRead marks one of the caller's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	updated, err := s.repo.MarkRead(ctx, id, userID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification for the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// Preferences returns the caller's notification preferences.
func (s *NotificationService) Preferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return prefs, nil
}

// SetPreference toggles one notification type for the caller.
func (s *NotificationService) SetPreference(ctx context.Context, userID string, req PreferenceRequest) error {
	switch req.Type {
	case models.NotificationWeeklyDigest, models.NotificationTeacherInsights, models.NotificationAssignmentOverdue:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown notification type")
	}
	pref := &models.NotificationPreference{UserID: userID, Type: req.Type, Enabled: req.Enabled}
	if err := s.repo.UpsertPreference(ctx, pref); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preference")
	}
	return nil
}

func (s *NotificationService) handleDelivery(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	if err := s.repo.Create(ctx, &notification); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	s.logger.Debug("notification delivered",
		zap.String("user_id", notification.UserID),
		zap.String("type", notification.Type))
	return nil
}
