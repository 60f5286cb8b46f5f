package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) error
}

// NotificationService delivers in-app notifications.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger, now: time.Now}
}

// Notify stores a notification for userID. Delivery failures are logged and
// never surface to the workflow that triggered them.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind models.NotificationType, title, message string, link *string) {
	if s == nil || s.repo == nil || userID == "" {
		return
	}
	n := &models.Notification{UserID: userID, Type: kind, Title: title, Message: message, Link: link}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("failed to deliver notification", zap.String("user_id", userID), zap.String("title", title), zap.Error(err))
	}
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	items, err := s.repo.ListByUser(ctx, actor.ID, unreadOnly, limit)
	if err != nil {
		return nil, internalError(err, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id string) error {
	if actor.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	ok, err := s.repo.MarkRead(ctx, id, actor.ID, s.now().UTC())
	if err != nil {
		return internalError(err, "failed to mark notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of the actor as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) error {
	if actor.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.repo.MarkAllRead(ctx, actor.ID, s.now().UTC()); err != nil {
		return internalError(err, "failed to mark notifications")
	}
	return nil
}
