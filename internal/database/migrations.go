package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"gorm.io/gorm"
)

type index struct {
	model   interface{}
	table   string
	name    string
	columns string
}

// secondaryIndexes back the list queries: newest-first task lists, status filters, and
// per-user notification feeds.
var secondaryIndexes = []index{
	{&models.Task{}, "tasks", "idx_tasks_created_at", "created_at"},
	{&models.Task{}, "tasks", "idx_tasks_status_created_at", "status, created_at"},
	{&models.Task{}, "tasks", "idx_tasks_creator_id", "creator_id"},
	{&models.Task{}, "tasks", "idx_tasks_assignee_id", "assignee_id"},
	{&models.Notification{}, "notifications", "idx_notifications_user_id_created_at", "user_id, created_at"},
}

// AddIndexes adds performance-critical indexes to the database
func AddIndexes(db *gorm.DB, log logrus.FieldLogger) error {
	migrator := db.Migrator()

	for _, idx := range secondaryIndexes {
		if migrator.HasIndex(idx.model, idx.name) {
			log.WithField("index", idx.name).Debug("Index already exists, skipping")
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.WithFields(logrus.Fields{
			"index":   idx.name,
			"table":   idx.table,
			"columns": idx.columns,
		}).Info("Created index")
	}

	return nil
}
