// Package database manages the embedded SQLite store backing the series
// metadata cache.
package database

import (
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

// Open opens the SQLite database at the configured DSN and migrates the
// schema. The returned handle is safe for concurrent use.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: newGormLogger(logger, cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DSN, err)
	}

	if err := db.AutoMigrate(&models.SeriesRecord{}); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	logger.Debug("database opened", slog.String("dsn", cfg.DSN))
	return db, nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying connection: %w", err)
	}
	return sqlDB.Close()
}
