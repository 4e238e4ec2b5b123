package models

import "time"

// RefreshToken is a single-use opaque credential exchanged for a new token pair.
type RefreshToken struct {
	ID        uint64    `gorm:"primarykey"`
	UserID    uint64    `gorm:"not null;index"`
	Token     string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
