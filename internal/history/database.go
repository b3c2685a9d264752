// Package history keeps a local record of pipeline runs in SQLite.
package history

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"apiscribe/internal/logging"
)

// Config holds DB configuration.
type Config struct {
	Path     string
	LogLevel logger.LogLevel
}

// Open opens the SQLite database at cfg.Path, creating its directory, and
// runs migrations.
func Open(cfg Config) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Warn
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", cfg.Path)

	gormLogger := logger.New(
		log.New(loggerWriter{}, "", 0),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection keeps SQLite from reporting "database is locked"
	// when batch runs record concurrently.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	logging.HistoryDebug("opened %s", cfg.Path)
	return db, nil
}

// Close releases the underlying connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// loggerWriter routes GORM's logger into the history category.
type loggerWriter struct{}

func (loggerWriter) Write(p []byte) (int, error) {
	logging.HistoryWarn("%s", strings.TrimSpace(string(p)))
	return len(p), nil
}
