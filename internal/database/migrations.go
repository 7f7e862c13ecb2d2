package database

import (
	"fmt"

	"gorm.io/gorm"
)

// StatusKeyExpr folds the stored status the way models.StatusKeys does, so
// legacy and canonical spellings compare equal.
const StatusKeyExpr = `LOWER(REPLACE(REPLACE(REPLACE(REPLACE(COALESCE(status, ''), '_', ''), '-', ''), '.', ''), ' ', ''))`

// RunMigrations executes all database migrations
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates database indexes
func createIndexes(db *gorm.DB) error {
	// Queue listing: folded status filter, newest first
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cases_status_key
		ON cases ((` + StatusKeyExpr + `), created_at)
	`).Error; err != nil {
		return err
	}

	return nil
}
