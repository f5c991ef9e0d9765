package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"zyberhero/internal/logger"
	"zyberhero/internal/webconfig"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured store. Schema changes are applied
// separately with AutoMigrate. The caller owns the returned handle and must
// Close it.
func Open(cfg webconfig.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		logger.DB.Info().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("opening database")
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres_dsn is required when driver is postgres")
		}
		dialector = postgres.Open(cfg.PostgresDSN)
		logger.DB.Info().Str("driver", "postgres").Msg("opening database")
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, GormConfig(debug))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// single writer connection for sqlite
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	logger.DB.Info().Msg("database ready")
	return db, nil
}

// GormConfig is shared by the service and the in-memory test stores.
func GormConfig(debug bool) *gorm.Config {
	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Info
	}
	return &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&Child{},
		&Device{},
		&ActivityLog{},
		&LiveAppStatus{},
		&ControlCommand{},
		&Alert{},
		&Location{},
		&SafeZone{},
		&Setting{},
		&AuditLog{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err came from a unique index. Drivers
// without error translation are matched on their message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
