package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	db, err := Open(cfg.DSN())
	if err != nil {
		return err
	}
	DB = db

	slog.Info("database connected", "host", cfg.DBHost, "db", cfg.DBName)
	return nil
}

// Open connects to PostgreSQL with the pool settings used in production.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// Migrate runs AutoMigrate for the identity, directory and logging tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Identity{},
		&models.RefreshToken{},
		&models.DirectoryEntry{},
		&models.SystemLog{},
	)
}

// MigrateModels runs AutoMigrate for arbitrary models (used by plugins).
func MigrateModels(db *gorm.DB, modelList []interface{}) error {
	if len(modelList) == 0 {
		return nil
	}
	return db.AutoMigrate(modelList...)
}

func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
