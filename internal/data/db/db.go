package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // pure go sqlite driver, registered as "sqlite"

	"github.com/yungbote/cartledger/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver        string        `yaml:"driver"`
	DSN           string        `yaml:"dsn"`
	LogLevel      string        `yaml:"log_level"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	MaxOpenConns  int           `yaml:"max_open_conns"`
	AutoMigrate   bool          `yaml:"auto_migrate"`
}

func DefaultConfig() Config {
	return Config{
		Driver:        DriverSQLite,
		DSN:           "file:cartledger.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		LogLevel:      "warn",
		SlowThreshold: time.Second,
		AutoMigrate:   true,
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	return nil
}

// Open connects to the configured database and, when enabled, migrates the
// cart and item tables.
func Open(cfg Config, logg *logger.Logger) (*gorm.DB, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	serviceLog := logg.With("service", "Database", "driver", driver)

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: cfg.DSN})
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access %s pool: %w", driver, err)
	}
	maxOpen := cfg.MaxOpenConns
	if driver == DriverSQLite {
		// sqlite allows one writer; a second pooled connection would block on
		// the open transaction.
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}

	if cfg.AutoMigrate {
		if err := AutoMigrateAll(gdb); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	serviceLog.Info("database ready", "dsn", cfg.DSN, "auto_migrate", cfg.AutoMigrate)
	return gdb, nil
}

func gormLogLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

// SQLiteFileConfig returns a migrated sqlite configuration for a database file
// under dir.
func SQLiteFileConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.DSN = "file:" + filepath.Join(dir, "cartledger.db") + "?_pragma=busy_timeout(5000)"
	cfg.LogLevel = "silent"
	return cfg
}
