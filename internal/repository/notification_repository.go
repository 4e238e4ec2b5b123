package repository

import (
	"context"

	"github.com/yukikurage/task-tracker-api/internal/database"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormNotificationRepository is a GORM implementation of NotificationRepository
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create creates a new notification
func (r *GormNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Omit("User", "Task").Create(notification).Error
}

// FindByID finds a notification by ID with its task loaded
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uint64) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Preload("Task").First(&notification, id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

// ListByUser lists the user's notifications newest first with their tasks loaded
func (r *GormNotificationRepository) ListByUser(ctx context.Context, userID uint64) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(database.NewestFirst("notifications")).
		Preload("Task").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead flags the notification as read if it belongs to userID. Rows that are already
// read or belong to someone else are left alone.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, id, userID uint64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Update("is_read", true)

	return result.RowsAffected, result.Error
}
