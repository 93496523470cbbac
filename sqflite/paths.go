package sqflite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
)

// resolvePath makes a database path absolute against root. The in-memory name is kept.
func resolvePath(root, path string) string {
	if path == InMemoryPath || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func fileExists(path string) bool {
	if path == InMemoryPath {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// removeDatabaseFiles deletes the database and its journal files. Missing files are ignored.
func removeDatabaseFiles(path string) error {
	if path == InMemoryPath {
		return nil
	}
	var errs []error
	for _, suffix := range []string{"", "-journal", "-shm", "-wal"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// connect opens path with driver on a single connection.
func connect(driver, path string, readOnly bool, busyTimeout time.Duration) (*sqlx.DB, error) {
	dsn := path
	if path != InMemoryPath {
		if !readOnly {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		} else {
			dsn = "file:" + path + "?mode=ro"
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}
