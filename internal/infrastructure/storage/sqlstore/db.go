// Package sqlstore implements tx.Resource and ledger.Repository with gorm.
// SQLite (github.com/glebarez/sqlite, pure Go) is the bundled dialect.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"txchain/pkg/logger"
)

// OpenSQLite opens a SQLite database at dsn, creating its directory if needed.
// The pool is limited to one connection: SQLite serialises writers anyway and a
// single connection keeps in-memory databases consistent.
func OpenSQLite(ctx context.Context, dsn string) (*gorm.DB, error) {
	if err := ensureSQLiteDirectory(dsn); err != nil {
		return nil, err
	}

	// TranslateError maps constraint violations to gorm.ErrDuplicatedKey.
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, closeOnError(db, fmt.Errorf("sqlite handle: %w", err))
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, closeOnError(db, fmt.Errorf("enable foreign keys: %w", err))
	}

	logger.Info(ctx, "database opened", "driver", "sqlite", "dsn", dsn)
	return db, nil
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || strings.Contains(candidate, ":memory:") || strings.Contains(candidate, "mode=memory") {
		return nil
	}

	candidate = strings.TrimPrefix(candidate, "file:")
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %q: %w", dir, err)
	}
	return nil
}

// closeOnError releases db after a failed setup step and returns err.
func closeOnError(db *gorm.DB, err error) error {
	if c, ok := db.ConnPool.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			return errors.Join(err, fmt.Errorf("close sqlite db: %w", cerr))
		}
	}
	return err
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
