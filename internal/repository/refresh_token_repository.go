package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/task-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormRefreshTokenRepository is a GORM implementation of RefreshTokenRepository
type GormRefreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

// Create stores a newly issued token
func (r *GormRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Omit("User").Create(token).Error
}

// Rotate consumes presented and stores replacement for the same user. The delete is
// conditional on the row still existing, so of two concurrent calls with the same token
// only one succeeds.
func (r *GormRefreshTokenRepository) Rotate(ctx context.Context, presented string, now time.Time, replacement *models.RefreshToken) (*models.RefreshToken, error) {
	var consumed models.RefreshToken

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").Where("token = ?", presented).First(&consumed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenInvalid
			}
			return err
		}

		if consumed.Expired(now) {
			return ErrRefreshTokenInvalid
		}

		result := tx.Where("id = ?", consumed.ID).Delete(&models.RefreshToken{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRefreshTokenInvalid
		}

		replacement.UserID = consumed.UserID
		if err := tx.Omit("User").Create(replacement).Error; err != nil {
			return fmt.Errorf("store replacement token: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &consumed, nil
}

// DeleteExpiredForUser removes the user's tokens that expired before now
func (r *GormRefreshTokenRepository) DeleteExpiredForUser(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at < ?", userID, now).
		Delete(&models.RefreshToken{})

	return result.RowsAffected, result.Error
}
