// Package audit implements the query-event audit trail (SPEC_FULL.md
// §4.9): a single serialized log writer for slow/failed queries, plus an
// optional SQLite query_events table for structured lookups. The log
// remains the source of truth; SQLite is enrichment.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/logger"
)

const timeLayout = "01-02-2006 15:04:05 MST"

// Store is the Dispatcher's Recorder: every Write (whether to the log
// file or the database) goes through writeMu, so the two event types
// never interleave a partial line (design note 3's shared-file-handle
// hazard).
type Store struct {
	writeMu sync.Mutex
	logFile *os.File
	db      *sql.DB // nil when audit.sqlite_path is empty
}

// Open creates a Store writing to logPath (created if missing) and,
// when sqlitePath is non-empty, indexing the same events into a
// query_events SQLite table at sqlitePath.
func Open(logPath, sqlitePath string) (*Store, error) {
	if dir := filepath.Dir(logPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create audit log directory: %s", dir)
		}
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open audit log %s", logPath)
	}

	s := &Store{logFile: f}

	if sqlitePath != "" {
		db, err := openDB(sqlitePath)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := migrate(db); err != nil {
			db.Close()
			f.Close()
			return nil, errors.Wrap(err, "failed to migrate audit database")
		}
		s.db = db
	}

	return s, nil
}

// Close releases the log file handle and, if open, the SQLite database.
func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.logFile.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// LogFailed records a query whose dispatcher.blackbox_ms window elapsed
// before it resolved (it may still succeed afterward; this only flags
// that it ran long enough to warrant attention).
func (s *Store) LogFailed(query string, issuedAt time.Time) {
	line := fmt.Sprintf("FAILED: %q issued at %s has failed.\n", query, issuedAt.Format(timeLayout))
	s.write("failed", query, issuedAt, nil, line)
}

// LogSlow records a query that resolved past the Dispatcher's slow-query
// threshold (server.slow_query_ms, 60 seconds by default).
func (s *Store) LogSlow(query string, elapsed time.Duration) {
	issuedAt := time.Now().Add(-elapsed)
	line := fmt.Sprintf("SLOW:   %q issued at %s took %.2f minutes to resolve.\n", query, issuedAt.Format(timeLayout), elapsed.Minutes())
	ms := elapsed.Milliseconds()
	s.write("slow", query, issuedAt, &ms, line)
}

// write serializes one line to the log file and, if configured, one row
// into query_events. Both targets are best-effort: a write failure is
// logged, not propagated, since audit trail loss must never fail the
// query it's describing.
func (s *Store) write(eventType, query string, issuedAt time.Time, elapsedMS *int64, line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.logFile.WriteString(line); err != nil {
		logger.Logger.Warnw("audit: failed to write log line", "event_type", eventType, "error", err)
	}

	if s.db == nil {
		return
	}
	if _, err := s.db.Exec(
		"INSERT INTO query_events (event_type, query, issued_at, elapsed_ms) VALUES (?, ?, ?, ?)",
		eventType, query, issuedAt, elapsedMS,
	); err != nil {
		logger.Logger.Warnw("audit: failed to index event", "event_type", eventType, "error", err)
	}
}
