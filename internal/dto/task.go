package dto

import (
	"time"

	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/patch"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// TaskDTO is the task view returned to clients, with creator and assignee resolved to
// usernames.
type TaskDTO struct {
	ID                 uint64            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Status             models.TaskStatus `json:"status"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          *time.Time        `json:"updatedAt"`
	CreatedByUserID    uint64            `json:"createdByUserId"`
	CreatedByUsername  string            `json:"createdByUsername"`
	AssignedToUserID   *uint64           `json:"assignedToUserId"`
	AssignedToUsername *string           `json:"assignedToUsername"`
}

// CreateTaskRequest is the body of POST /api/tasks
type CreateTaskRequest struct {
	Title            string  `json:"title" binding:"required,max=255"`
	Description      string  `json:"description"`
	AssignedToUserID *uint64 `json:"assignedToUserId"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Only keys present in the body are
// applied; an explicit null assignedToUserId clears the assignee.
type UpdateTaskRequest struct {
	Title            patch.Field[string]            `json:"title"`
	Description      patch.Field[string]            `json:"description"`
	Status           patch.Field[models.TaskStatus] `json:"status"`
	AssignedToUserID patch.Field[uint64]            `json:"assignedToUserId"`
}

// SuggestTasksRequest is the body of POST /api/tasks/suggest
type SuggestTasksRequest struct {
	Text string `json:"text" binding:"required"`
}

// SuggestedTaskDTO is a task proposed from free text. It is not persisted.
type SuggestedTaskDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToUserDTOs converts a slice of users
func ToUserDTOs(users []models.User) []UserDTO {
	items := make([]UserDTO, len(users))
	for i, user := range users {
		items[i] = ToUserDTO(user)
	}
	return items
}

// ToTaskDTO converts a Task model to TaskDTO. Creator and Assignee should be preloaded.
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Status:            task.Status,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
		CreatedByUserID:   task.CreatorID,
		CreatedByUsername: task.Creator.Username,
		AssignedToUserID:  task.AssigneeID,
	}

	if task.AssigneeID != nil && task.Assignee != nil {
		username := task.Assignee.Username
		dto.AssignedToUsername = &username
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks, keeping order
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return items
}
