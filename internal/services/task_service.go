package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/cache"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/patch"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = apierrors.New(apierrors.KindNotFound, "task not found")
	ErrTitleRequired          = apierrors.New(apierrors.KindValidation, "title is required")
	ErrTitleTooLong           = apierrors.New(apierrors.KindValidation, fmt.Sprintf("title must be at most %d characters", constants.MaxTitleLength))
	ErrInvalidStatus          = apierrors.New(apierrors.KindValidation, "status must be one of New, InProgress, Completed")
	ErrAssigneeNotFound       = apierrors.New(apierrors.KindValidation, "assigned user does not exist")
	ErrSuggestTextRequired    = apierrors.New(apierrors.KindValidation, "text is required")
	ErrAIServiceNotConfigured = apierrors.New(apierrors.KindUnavailable, "AI service is not configured")
	ErrAIServiceUnavailable   = apierrors.New(apierrors.KindUnavailable, "AI service is temporarily unavailable")
)

// TaskNotifier records a notification for a user about a task.
type TaskNotifier interface {
	Create(ctx context.Context, recipientID, taskID uint64, message string) (*models.Notification, error)
}

// TaskListCache caches task list results. A nil slice from GetList is a miss; the
// generation it returns is handed back to SetList so a list loaded before a concurrent
// write is never served after it.
type TaskListCache interface {
	GetList(ctx context.Context, q cache.TaskListQuery) ([]models.Task, int64, error)
	SetList(ctx context.Context, generation int64, q cache.TaskListQuery, list []models.Task) error
	InvalidateAll(ctx context.Context) error
}

// TaskService handles task business logic
type TaskService struct {
	taskRepo  repository.TaskRepository
	userRepo  repository.UserRepository
	notifier  TaskNotifier
	cache     TaskListCache
	aiService *AIService
	timeFunc  func() time.Time
	log       logrus.FieldLogger
}

// NewTaskService creates a new TaskService. aiService may be nil.
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, notifier TaskNotifier, aiService *AIService, log logrus.FieldLogger) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		aiService: aiService,
		timeFunc:  time.Now,
		log:       log,
	}
}

// WithCache enables list caching.
func (s *TaskService) WithCache(c TaskListCache) *TaskService {
	s.cache = c
	return s
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status *models.TaskStatus
	// Page is nil when every task should be returned.
	Page *utils.PaginationParams
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeID  *uint64
	CreatorID   uint64
}

// UpdateTaskInput carries the fields of a partial update. Absent fields are left alone.
type UpdateTaskInput struct {
	Title       patch.Field[string]
	Description patch.Field[string]
	Status      patch.Field[models.TaskStatus]
	AssigneeID  patch.Field[uint64]
}

// ListTasks returns tasks newest first
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, error) {
	query := cache.TaskListQuery{}
	if input.Status != nil {
		query.Status = string(*input.Status)
	}
	if input.Page != nil {
		query.Page = input.Page.Page
		query.Limit = input.Page.Limit
	}

	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, gen, err := s.cache.GetList(ctx, query)
		switch {
		case err != nil:
			s.logger(ctx).WithError(err).Warn("Task list cache read failed")
		case cached != nil:
			return cached, nil
		default:
			generation, cacheable = gen, true
		}
	}

	tasks, err := s.taskRepo.List(ctx, repository.TaskFilter{
		Status: input.Status,
		Page:   input.Page,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	if cacheable {
		if err := s.cache.SetList(ctx, generation, query, tasks); err != nil {
			s.logger(ctx).WithError(err).Warn("Task list cache write failed")
		}
	}

	return tasks, nil
}

// GetTask returns a task with creator and assignee loaded
func (s *TaskService) GetTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// CreateTask creates a task in status New and notifies the assignee, if any
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > constants.MaxTitleLength {
		return nil, ErrTitleTooLong
	}

	if input.AssigneeID != nil {
		if err := s.ensureUserExists(ctx, *input.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		Title:       title,
		Description: input.Description,
		Status:      models.TaskStatusNew,
		CreatedAt:   s.timeFunc().UTC(),
		CreatorID:   input.CreatorID,
		AssigneeID:  input.AssigneeID,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.invalidateLists(ctx)

	if task.HasAssignee() {
		s.notify(ctx, *task.AssigneeID, task.ID, fmt.Sprintf("You have been assigned a new task: %s", task.Title))
	}

	return s.GetTask(ctx, task.ID)
}

// UpdateTask applies the present fields, stamps UpdatedAt, and emits at most one
// notification: reassignment wins over a status change. Only the touched columns are
// written. A null title, description or status is treated as omitted; a null assignee
// clears the assignment.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.validateUpdate(ctx, input); err != nil {
		return nil, err
	}

	previousAssigneeID := task.AssigneeID
	previousStatus := task.Status

	fields := make([]string, 0, 5)
	if input.Title.HasValue() {
		task.Title = *input.Title.Value
		fields = append(fields, "Title")
	}
	if input.Description.HasValue() {
		task.Description = *input.Description.Value
		fields = append(fields, "Description")
	}
	if input.Status.HasValue() {
		task.Status = *input.Status.Value
		fields = append(fields, "Status")
	}
	if input.AssigneeID.Set {
		task.AssigneeID = input.AssigneeID.Value
		fields = append(fields, "AssigneeID")
	}

	now := s.timeFunc().UTC()
	task.UpdatedAt = &now
	fields = append(fields, "UpdatedAt")

	if err := s.taskRepo.Update(ctx, task, fields); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.invalidateLists(ctx)

	switch {
	case task.HasAssignee() && !sameUserID(task.AssigneeID, previousAssigneeID):
		s.notify(ctx, *task.AssigneeID, task.ID, fmt.Sprintf("You have been assigned task: %s", task.Title))
	case task.HasAssignee() && task.Status != previousStatus:
		s.notify(ctx, *task.AssigneeID, task.ID, fmt.Sprintf("Status of task '%s' changed to: %s", task.Title, task.Status))
	}

	return s.GetTask(ctx, task.ID)
}

// DeleteTask deletes a task and its notifications
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint64) error {
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.invalidateLists(ctx)

	return nil
}

// SuggestTasks uses AI to propose tasks from free text. Nothing is persisted.
func (s *TaskService) SuggestTasks(ctx context.Context, text string) ([]GeneratedTask, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrSuggestTextRequired
	}
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}

	aiTasks, err := s.aiService.GenerateTasksFromText(ctx, text)
	if err != nil {
		if errors.Is(err, ErrAIServiceUnavailable) {
			return nil, err
		}
		s.logger(ctx).WithError(err).Error("Task suggestion failed")
		return nil, ErrAIServiceUnavailable
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	for _, aiTask := range aiTasks {
		aiTask.Title = strings.TrimSpace(aiTask.Title)
		if aiTask.Title == "" || utf8.RuneCountInString(aiTask.Title) > constants.MaxTitleLength {
			continue
		}

		validTasks = append(validTasks, aiTask)
		if len(validTasks) == constants.MaxAIGeneratedTasks {
			break
		}
	}

	return validTasks, nil
}

func (s *TaskService) validateUpdate(ctx context.Context, input UpdateTaskInput) error {
	if input.Title.HasValue() && utf8.RuneCountInString(*input.Title.Value) > constants.MaxTitleLength {
		return ErrTitleTooLong
	}
	if input.Status.HasValue() && !input.Status.Value.Valid() {
		return ErrInvalidStatus
	}
	if input.AssigneeID.HasValue() {
		return s.ensureUserExists(ctx, *input.AssigneeID.Value)
	}
	return nil
}

// ensureUserExists maps a missing user to ErrAssigneeNotFound
func (s *TaskService) ensureUserExists(ctx context.Context, userID uint64) error {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to verify assignee: %w", err)
	}
	if !exists {
		return ErrAssigneeNotFound
	}
	return nil
}

// notify records a notification; a failure is logged and never fails the task write.
func (s *TaskService) notify(ctx context.Context, recipientID, taskID uint64, message string) {
	if s.notifier == nil {
		return
	}

	if _, err := s.notifier.Create(ctx, recipientID, taskID, message); err != nil {
		s.logger(ctx).WithError(err).WithFields(logrus.Fields{
			"task_id": taskID,
			"user_id": recipientID,
		}).Error("Failed to record task notification")
	}
}

func (s *TaskService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger(ctx).WithError(err).Warn("Task list cache invalidation failed")
	}
}

func (s *TaskService) logger(ctx context.Context) logrus.FieldLogger {
	return logging.FromContext(ctx, s.log)
}

func sameUserID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
