package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/utils"
)

// ErrRefreshTokenInvalid is returned by Rotate when the presented token is unknown, expired,
// or was consumed by a concurrent request.
var ErrRefreshTokenInvalid = errors.New("refresh token repository: token invalid")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with creator and assignee loaded
	FindByID(ctx context.Context, id uint64) (*models.Task, error)

	// List retrieves tasks newest first with optional filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// Update writes only the named fields of task, so concurrent updates of other
	// fields are not reverted
	Update(ctx context.Context, task *models.Task, fields []string) error

	// Delete removes a task and its notifications
	Delete(ctx context.Context, id uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Status *models.TaskStatus
	// Page is nil when the caller wants every matching task.
	Page *utils.PaginationParams
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByUsernameKey finds a user by normalized username
	FindByUsernameKey(ctx context.Context, key string) (*models.User, error)

	// Exists reports whether a user with the given ID exists
	Exists(ctx context.Context, id uint64) (bool, error)

	// List lists all users ordered by username
	List(ctx context.Context) ([]models.User, error)

	// CountCreatedTasks counts the tasks the user created
	CountCreatedTasks(ctx context.Context, id uint64) (int64, error)

	// Delete removes a user together with their notifications and refresh tokens and
	// unassigns their tasks
	Delete(ctx context.Context, id uint64) error
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// Create creates a new notification
	Create(ctx context.Context, notification *models.Notification) error

	// FindByID finds a notification by ID with its task loaded
	FindByID(ctx context.Context, id uint64) (*models.Notification, error)

	// ListByUser lists the user's notifications newest first with their tasks loaded
	ListByUser(ctx context.Context, userID uint64) ([]models.Notification, error)

	// MarkRead flags the notification as read if it belongs to userID and returns the
	// number of rows changed
	MarkRead(ctx context.Context, id, userID uint64) (int64, error)
}

// RefreshTokenRepository defines the interface for refresh token data access
type RefreshTokenRepository interface {
	// Create stores a newly issued token
	Create(ctx context.Context, token *models.RefreshToken) error

	// Rotate consumes the presented token and stores replacement for the same user in one
	// transaction. It returns the consumed row with its user loaded.
	Rotate(ctx context.Context, presented string, now time.Time, replacement *models.RefreshToken) (*models.RefreshToken, error)

	// DeleteExpiredForUser removes the user's tokens that expired before now
	DeleteExpiredForUser(ctx context.Context, userID uint64, now time.Time) (int64, error)
}
