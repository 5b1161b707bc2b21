package db

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrateAll migrates every model. Single source of truth for the
// schema; test databases use it too.
func AutoMigrateAll(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&DeploymentModel{},
		&RuntimeTopologyModel{},
		&MonitorEventModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
