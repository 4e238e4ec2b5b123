package models

import (
	"strings"
	"time"
)

type User struct {
	ID       uint64 `gorm:"primarykey" json:"id"`
	Username string `gorm:"type:varchar(50);not null" json:"username"`
	// UsernameKey is the lowercase form of Username and carries the unique index.
	UsernameKey  string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"-"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`

	// Relations
	CreatedTasks  []Task         `gorm:"foreignKey:CreatorID" json:"-"`
	AssignedTasks []Task         `gorm:"foreignKey:AssigneeID" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID" json:"-"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
}

// NormalizeUsername returns the key used for username uniqueness and lookup.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
