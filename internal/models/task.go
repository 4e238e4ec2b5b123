package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "New"
	TaskStatusInProgress TaskStatus = "InProgress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

var taskStatusOrder = []TaskStatus{TaskStatusNew, TaskStatusInProgress, TaskStatusCompleted}

// ParseTaskStatus accepts a status name (case-insensitive) or its ordinal 0, 1, 2.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n >= len(taskStatusOrder) {
			return "", fmt.Errorf("unknown task status %q", raw)
		}
		return taskStatusOrder[n], nil
	}
	for _, s := range taskStatusOrder {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", raw)
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	return s.Ordinal() >= 0
}

// Ordinal returns the wire number of s (New 0, InProgress 1, Completed 2), or -1.
func (s TaskStatus) Ordinal() int {
	for i, known := range taskStatusOrder {
		if s == known {
			return i
		}
	}
	return -1
}

// MarshalJSON writes the ordinal, which is what clients index by. The name is kept for
// storage and notification text. An unset status is written as null.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	n := s.Ordinal()
	if n < 0 {
		return nil, fmt.Errorf("unknown task status %q", string(s))
	}
	return strconv.AppendInt(nil, int64(n), 10), nil
}

// UnmarshalJSON accepts both "InProgress" and 1. null leaves s unchanged.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := ParseTaskStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Task struct {
	ID          uint64     `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'New'" json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	// UpdatedAt stays nil until the first mutation.
	UpdatedAt  *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
	CreatorID  uint64     `gorm:"not null" json:"createdByUserId"`
	AssigneeID *uint64    `json:"assignedToUserId"`

	// Relations
	Creator       User           `gorm:"foreignKey:CreatorID;constraint:OnDelete:RESTRICT" json:"creator"`
	Assignee      *User          `gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`
	Notifications []Notification `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasAssignee reports whether the task is currently assigned.
func (t *Task) HasAssignee() bool {
	return t.AssigneeID != nil
}
