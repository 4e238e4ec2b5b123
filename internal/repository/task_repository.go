package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/task-tracker-api/internal/database"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"gorm.io/gorm"
)

// ErrNoTaskFields is returned by Update when no field is named.
var ErrNoTaskFields = errors.New("no task fields to update")

var updatableTaskFields = map[string]bool{
	"Title":       true,
	"Description": true,
	"Status":      true,
	"UpdatedAt":   true,
	"AssigneeID":  true,
}

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Creator", "Assignee").Create(task).Error
}

// FindByID finds a task by ID with creator and assignee loaded
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Assignee").
		First(&task, id).Error
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks newest first with optional filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{})

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}

	query = query.Scopes(database.NewestFirst("tasks"))
	if filter.Page != nil {
		query = query.Scopes(database.Paginate(*filter.Page))
	}

	tasks := []models.Task{}
	if err := query.Preload("Creator").Preload("Assignee").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// Update writes the named fields of task. Only Title, Description, Status, UpdatedAt
// and AssigneeID may be named; a nil assignee is stored as NULL.
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task, fields []string) error {
	if len(fields) == 0 {
		return ErrNoTaskFields
	}
	for _, field := range fields {
		if !updatableTaskFields[field] {
			return fmt.Errorf("task field %q is not updatable", field)
		}
	}

	return r.db.WithContext(ctx).
		Model(task).
		Select(fields).
		Updates(task).Error
}

// Delete removes a task and its notifications. It returns gorm.ErrRecordNotFound when no
// such task exists.
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Task{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
}
