package database

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the configured database and migrates the schema. SQL
// warnings and errors go to log.
func NewDatabase(cfg *config.Database, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(PostgresDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := open(dialector, log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite has a single writer; one connection keeps transactions
		// from failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// NewInMemory opens a private in-memory SQLite database with the schema
// migrated. Each name gets its own database.
func NewInMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(name))
	db, err := open(sqlite.Open(dsn), zap.NewNop())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// The database lives as long as one connection stays open.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// newLogger routes gorm's log through zap. A missing row is an expected
// outcome for lookups, not a warning.
func newLogger(log *zap.Logger) logger.Interface {
	// NewStdLogAt only fails for an invalid level; WarnLevel is valid.
	stdLog, _ := zap.NewStdLogAt(log.Named("gorm"), zapcore.WarnLevel)
	return logger.New(stdLog, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func open(dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(log),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates tables for every model. Existing data is kept.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SeedDefaultHours installs Monday to Friday 09:30-16:00 when no trading
// hours exist yet.
func SeedDefaultHours(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&models.TradingHours{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count trading hours: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	for day := time.Monday; day <= time.Friday; day++ {
		hours := models.TradingHours{Weekday: day, OpenMinute: 9*60 + 30, CloseMinute: 16 * 60}
		if err := db.Create(&hours).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return false, fmt.Errorf("failed to seed hours for %s: %w", day, err)
		}
	}
	return true, nil
}

// PostgresDSN returns cfg.DSN, or builds a URL from the discrete fields.
func PostgresDSN(cfg *config.Database) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
