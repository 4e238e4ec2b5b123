package dto

import (
	"time"

	"github.com/yukikurage/task-tracker-api/internal/models"
)

// NotificationDTO is the notification view returned by the API and pushed over the hub.
type NotificationDTO struct {
	ID        uint64    `json:"id"`
	TaskID    uint64    `json:"taskId"`
	TaskTitle string    `json:"taskTitle"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToNotificationDTO converts a Notification with its Task preloaded
func ToNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		TaskID:    n.TaskID,
		TaskTitle: n.Task.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// ToNotificationDTOs converts a slice of notifications, keeping order
func ToNotificationDTOs(notifications []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		items[i] = ToNotificationDTO(n)
	}
	return items
}
