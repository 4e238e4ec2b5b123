package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/dto"
	"github.com/yukikurage/task-tracker-api/internal/hub"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
)

// NotificationPublisher delivers a frame to a user's live connections without blocking.
type NotificationPublisher interface {
	PublishToUser(userID uint64, frame hub.Frame) int
}

// NotificationService records notifications and pushes them to connected clients.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher NotificationPublisher
	log       logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService. publisher may be nil, in which
// case notifications are only stored.
func NewNotificationService(repo repository.NotificationRepository, publisher NotificationPublisher, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// Create stores a notification for recipientID and pushes it to their live connections.
// Delivery is best effort; only a failed insert is an error.
func (s *NotificationService) Create(ctx context.Context, recipientID, taskID uint64, message string) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:  recipientID,
		TaskID:  taskID,
		Message: message,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	stored, err := s.repo.FindByID(ctx, notification.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}

	s.push(ctx, *stored)

	return stored, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint64) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification as read. Unknown ids and notifications owned by someone
// else are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uint64) error {
	rows, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if rows == 0 {
		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"notification_id": notificationID,
			"user_id":         userID,
		}).Debug("Mark read matched no unread notification")
	}

	return nil
}

func (s *NotificationService) push(ctx context.Context, notification models.Notification) {
	if s.publisher == nil {
		return
	}

	delivered := s.publisher.PublishToUser(notification.UserID, hub.Frame{
		Type:    constants.EventReceiveNotification,
		Payload: dto.ToNotificationDTO(notification),
	})

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"notification_id": notification.ID,
		"user_id":         notification.UserID,
		"connections":     delivered,
	}).Debug("Notification pushed")
}
