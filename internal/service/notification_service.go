package service

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// NotificationService exposes the in-app notification inbox. The rows are
// written by the mutating engines inside their own transactions; this
// service only reads and acknowledges them.
type NotificationService struct {
	notifications repository.NotificationRepository
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	rows, err := s.notifications.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, util.MapError(err)
	}
	return rows, nil
}

// MarkRead acknowledges one notification. Only the owner can acknowledge;
// anything else reads as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		return util.MapError(err)
	}
	return nil
}
