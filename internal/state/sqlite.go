// Package state persists the normalized spreadsheet snapshot in SQLite and
// maintains the FTS5 search index over it. The snapshot, the last-sync
// marker, and the index are always replaced together in one transaction, so
// readers never observe a snapshot that disagrees with its index.
package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/ianyh/castle/pkg/core"
)

// Config holds store configuration.
type Config struct {
	// SearchSheets is the sheet-title allow-list for free-text search.
	SearchSheets []string
	// SpecialSheets is the sheet-title allow-list for specials queries.
	SpecialSheets []string
	// Logger is optional.
	Logger *slog.Logger
}

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db            *sql.DB
	path          string
	searchSheets  []string
	specialSheets []string
	logger        *slog.Logger
}

// NewSQLiteStore creates a new store instance.
func NewSQLiteStore(cfg Config) *SQLiteStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{
		searchSheets:  cfg.SearchSheets,
		specialSheets: cfg.SpecialSheets,
		logger:        logger,
	}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection keeps in-memory databases coherent and sidesteps
	// writer lock contention; the store's workload is one sync at a time
	// plus cheap reads.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LastSync returns the time of the last successful sync, or nil before the
// first one.
func (s *SQLiteStore) LastSync() (*time.Time, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var syncedAt time.Time
	err := s.db.QueryRow(`SELECT synced_at FROM last_sync WHERE id = 1`).Scan(&syncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last sync time: %w", err)
	}
	return &syncedAt, nil
}

// nullString returns a sql.NullString for optional string fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Ensure SQLiteStore implements the Store interface.
var _ core.Store = (*SQLiteStore)(nil)
