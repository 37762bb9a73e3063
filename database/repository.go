package database

import (
	"fmt"

	models "broker-calls/database/models_pkg"

	"go.uber.org/zap"
)

// InitSchema performs auto-migration for every table the service owns
func (d *Database) InitSchema(logger *zap.Logger) error {
	logger.Info("🔄 Starting database schema initialization...")

	err := d.db.AutoMigrate(
		&models.User{},
		&models.Call{},
		&models.Notification{},
		&models.BlacklistedToken{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// Dashboard lists a user's calls newest first
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rmb_calls_creator_created
		ON rmb_calls (creator_id, created_at DESC)
	`).Error; err != nil {
		return WrapDBError("InitSchema", err)
	}

	// Admin queue and public feed both filter on status
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rmb_calls_status
		ON rmb_calls (status)
	`).Error; err != nil {
		return WrapDBError("InitSchema", err)
	}

	logger.Info("✅ Database schema initialized")
	return nil
}
