package db

import (
	"fmt"

	"github.com/router-for-me/SnippetRelay/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the users, plans and usage_events tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Plan{},
		&models.User{},
		&models.UsageEvent{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
