package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchpod/billing/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist before AutoMigrate references them
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	if err := db.AutoMigrate(
		&model.Subscription{},
	); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error
}

// createCustomTypes creates custom PostgreSQL types
func createCustomTypes(db *gorm.DB) error {
	var exists bool
	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'subscription_status')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE subscription_status AS ENUM ('active', 'past_due', 'canceled', 'incomplete', 'incomplete_expired', 'trialing', 'unpaid', 'paused')`).Error; err != nil {
			return err
		}
	}
	return nil
}

// createCustomIndexes creates indexes GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Webhook lookups resolve records by provider customer id
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_subscriptions_provider_customer_id ON subscriptions (provider_customer_id) WHERE provider_customer_id IS NOT NULL`).Error; err != nil {
		return err
	}
	return nil
}
