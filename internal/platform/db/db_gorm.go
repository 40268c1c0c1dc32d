// Package db opens the relational account store through gorm.
package db

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	authadapters "account_backend/internal/feature/auth/adapters"
)

// retryInterval is the pause between connection attempts.
const retryInterval = 3 * time.Second

// Config holds the connection settings for Postgres or SQLite.
type Config struct {
	Driver   string // "postgres" or "sqlite"
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string
	// SQLitePath is used when Driver is "sqlite".
	SQLitePath string
	// Migrate runs AutoMigrate for the account table after connecting.
	Migrate bool
}

// LoadConfigFromEnv reads DB_* and SQLITE_PATH. STORE_DRIVER is lower-cased.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Driver:     strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER"))),
		User:       os.Getenv("DB_USER"),
		Password:   os.Getenv("DB_PASSWORD"),
		Name:       os.Getenv("DB_NAME"),
		Host:       os.Getenv("DB_HOST"),
		Port:       os.Getenv("DB_PORT"),
		SSLMode:    os.Getenv("DB_SSLMODE"),
		SQLitePath: os.Getenv("SQLITE_PATH"),
		Migrate:    os.Getenv("RUN_MIGRATIONS") == "true",
	}
	if cfg.Driver == "" {
		cfg.Driver = "postgres"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "./accounts.db"
	}
	return cfg
}

// BuildDSN returns the driver-specific data source name.
func BuildDSN(cfg Config) string {
	if cfg.Driver == "sqlite" {
		return cfg.SQLitePath
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
}

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// OpenerFor returns the gorm opener for the configured driver.
// gorm's own log lines go to logger.
func OpenerFor(driver string, logger *zap.Logger) Opener {
	cfg := &gorm.Config{Logger: NewGormLogger(logger)}
	if driver == "sqlite" {
		return func(dsn string) (*gorm.DB, error) {
			return gorm.Open(sqlite.Open(dsn), cfg)
		}
	}
	return func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
}

// slowQueryThreshold is the query duration gorm reports as slow.
const slowQueryThreshold = 200 * time.Millisecond

// zapWriter forwards gorm's formatted log lines to zap.
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// NewGormLogger routes gorm's slow-query and error lines to zap.
// Lookups that find nothing are an expected outcome and are not logged.
func NewGormLogger(logger *zap.Logger) gormlogger.Interface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gormlogger.New(zapWriter{logger: logger.Named("gorm")}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// ConnectWithRetry calls opener until it succeeds or timeout elapses.
func ConnectWithRetry(dsn string, timeout time.Duration, opener Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		zap.L().Warn("db connect failed, retrying", zap.Error(err))
		time.Sleep(retryInterval)
	}
}

// OpenDB connects with a 60 second retry budget and optionally migrates.
func OpenDB(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := ConnectWithRetry(BuildDSN(cfg), 60*time.Second, OpenerFor(cfg.Driver, logger))
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", zap.String("driver", cfg.Driver))

	if cfg.Migrate {
		if err := authadapters.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("database migrated")
	}
	return db, nil
}
