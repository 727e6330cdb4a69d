// Package sqlite is the default single-file storage backend, built on GORM.
package sqlite

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if needed) the SQLite file and migrates the schema.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	// busy_timeout lets a second process wait for the writer instead of failing
	dsn := cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	// SQLite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&identityModel{}, &attendanceModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return db, nil
}

// Initialize opens the SQLite backend and registers it as the active storage backend.
func Initialize(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	database.RegisterBackend("sqlite",
		func() database.IdentityWriter { return NewIdentityRepository(db) },
		func() database.AttendanceWriter { return NewAttendanceRepository(db) },
	)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
