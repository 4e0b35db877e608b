package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"erp-connector-service/internal/models"
)

// Connect opens the Postgres connection pool. SQL logging is verbose in
// development and warnings-only elsewhere.
func Connect(databaseURL, environment string) (*gorm.DB, error) {
	logLevel := logger.Warn
	if environment == "development" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate creates or updates the service's tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ERPConnection{},
		&models.IntegrationEvent{},
		&models.IdempotencyRecord{},
		&models.ExternalMapping{},
	)
}
