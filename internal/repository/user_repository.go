package repository

import (
	"context"

	"github.com/yukikurage/task-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsernameKey finds a user by normalized username
func (r *GormUserRepository) FindByUsernameKey(ctx context.Context, key string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username_key = ?", key).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a user with the given ID exists
func (r *GormUserRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List lists all users ordered by username
func (r *GormUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("username_key ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountCreatedTasks counts the tasks the user created
func (r *GormUserRepository) CountCreatedTasks(ctx context.Context, id uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).Where("creator_id = ?", id).Count(&count).Error
	return count, err
}

// Delete removes the user and everything that only exists for them. It returns
// gorm.ErrRecordNotFound when no such user exists.
func (r *GormUserRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Task{}).Where("assignee_id = ?", id).Update("assignee_id", nil).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
}
