package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrAdminRequired    = apierrors.New(apierrors.KindForbidden, "only an administrator can perform this action")
	ErrCannotDeleteSelf = apierrors.New(apierrors.KindValidation, "you cannot delete your own account")
	ErrUserHasTasks     = apierrors.New(apierrors.KindConflict, "user has created tasks and cannot be deleted")
)

// AdminChecker decides whether a user holds admin privileges.
type AdminChecker interface {
	IsAdmin(userID uint64) bool
}

// UserService handles user administration.
type UserService struct {
	userRepo repository.UserRepository
	admins   AdminChecker
	cache    TaskListCache
	log      logrus.FieldLogger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, admins AdminChecker, log logrus.FieldLogger) *UserService {
	return &UserService{
		userRepo: userRepo,
		admins:   admins,
		log:      log,
	}
}

// WithCache sets the task list cache to invalidate when a deletion unassigns tasks.
func (s *UserService) WithCache(c TaskListCache) *UserService {
	s.cache = c
	return s
}

// ListUsers returns every user ordered by username.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes targetID on behalf of actorID, who must be an admin.
func (s *UserService) DeleteUser(ctx context.Context, actorID, targetID uint64) error {
	if !s.admins.IsAdmin(actorID) {
		return ErrAdminRequired
	}
	if actorID == targetID {
		return ErrCannotDeleteSelf
	}

	if _, err := s.userRepo.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	created, err := s.userRepo.CountCreatedTasks(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to count user tasks: %w", err)
	}
	if created > 0 {
		return ErrUserHasTasks
	}

	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log := logging.FromContext(ctx, s.log)
	log.WithFields(logrus.Fields{"actor_id": actorID, "user_id": targetID}).Info("User deleted")

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			log.WithError(err).Warn("Task list cache invalidation failed")
		}
	}

	return nil
}
