// Package db opens the GORM connection to the survey store.
package db

import (
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database types.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Config selects the survey store to connect to. The production store is
// MySQL; sqlite serves local runs and tests.
type Config struct {
	Type         string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DefaultConfig returns a config with conservative pool settings and an
// in-memory sqlite store.
func DefaultConfig() *Config {
	return &Config{
		Type:         TypeSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		MaxLifetime:  time.Hour,
	}
}

// ConfigFromEnv loads config from environment variables.
// OVERSIGHT_DB_TYPE, OVERSIGHT_DB_DSN
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("OVERSIGHT_DB_TYPE"); v != "" {
		cfg.Type = v
	}
	if v := os.Getenv("OVERSIGHT_DB_DSN"); v != "" {
		cfg.DSN = v
	}
	return cfg
}

// Connect opens the survey store. SQL logging is off: the EAV queries
// carry record ids and field values that do not belong in logs.
func Connect(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case TypeMySQL:
		dialector = mysql.Open(cfg.DSN)
	case TypePostgres:
		dialector = postgres.Open(cfg.DSN)
	case TypeSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("db: unsupported database type %q", cfg.Type)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Type, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: access pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	return gdb, nil
}
