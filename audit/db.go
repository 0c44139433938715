package audit

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/logger"
)

const (
	sqliteJournalMode  = "WAL"
	sqliteBusyTimeoutMS = 5000
)

// openDB opens the query_events SQLite database at path with the same
// WAL/foreign-key/busy-timeout settings the rest of the system's SQLite
// usage expects.
func openDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create audit database directory: %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open audit database at %s", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode = " + sqliteJournalMode); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to enable %s journal mode for %s", sqliteJournalMode, path)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to enable foreign keys for %s", path)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to set busy timeout to %dms for %s", sqliteBusyTimeoutMS, path)
	}

	logger.Logger.Debugw("audit database opened", "path", path)
	return db, nil
}
