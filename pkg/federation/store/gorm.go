// Package store implements federation persistence on GORM, backed by
// MySQL in production and SQLite for single-node and test deployments.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
)

// GORMStore implements federation persistence using GORM.
type GORMStore struct {
	db  *gorm.DB
	cfg *config.DatabaseConfig
}

// DSN returns the MySQL connection string for the configuration. The
// session charset and collation ride along so every connection in the
// pool uses the configured text semantics.
func DSN(c *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&collation=%s&parseTime=true",
		c.Username, c.Password, c.Host, c.Port, c.Name, c.Charset, c.Collation)
}

// New opens the database, bootstraps the schema and verifies that every
// table exists. Tables are migrated in dependency order so foreign keys
// always reference an existing table.
func New(cfg *config.DatabaseConfig) (*GORMStore, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// WAL for concurrent readers, foreign_keys for the ON DELETE
		// cascades the data model depends on.
		dsn := cfg.SQLitePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		dialector = sqlite.Open(dsn)

	case "mysql":
		dialector = mysql.Open(DSN(cfg))

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	for _, model := range models.AllModels() {
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	for _, model := range models.AllModels() {
		if !db.Migrator().HasTable(model) {
			return nil, fmt.Errorf("schema bootstrap incomplete: missing table for %T", model)
		}
	}

	return &GORMStore{db: db, cfg: cfg}, nil
}

// DB returns the underlying GORM handle, for advanced queries and tests.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// Close releases the database connection pool.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := err.Error()
	// SQLite or MySQL unique constraint errors
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "Duplicate entry")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
