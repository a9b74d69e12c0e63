// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and the cold-start schema reset.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/question-relay/go-question-relay/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs. synchronous=FULL because every write must be durably committed
	// before the call returns: the scheduler's post-delay preemption read has
	// to observe a moderator write that finished before the timer fired.
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=FULL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// InitSchema drops and recreates the question and user tables. Every process
// start is a cold start for the state machine: in-flight timers do not
// survive a restart, so stale rows would only be answered by accident. The
// feedback table is migrated but not dropped; ratings are append-only.
func InitSchema(db *gorm.DB) error {
	m := db.Migrator()
	for _, t := range []any{&domain.Question{}, &domain.UserCounter{}} {
		if m.HasTable(t) {
			if err := m.DropTable(t); err != nil {
				return err
			}
		}
	}
	return db.AutoMigrate(
		&domain.Question{},
		&domain.UserCounter{},
		&domain.Feedback{},
	)
}
