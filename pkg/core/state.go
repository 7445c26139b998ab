package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no entity has the given key.
var ErrNotFound = errors.New("not found")

// Store is the persistence and query interface over the normalized snapshot
// and its full-text index. Implemented by internal/state using SQLite.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Sync run bookkeeping
	CreateSyncRun() (*SyncRun, error)
	CompleteSyncRun(id string, status SyncStatus, errMsg string) error
	GetSyncRun(id string) (*SyncRun, error)
	GetLatestSyncRun() (*SyncRun, error)

	// Snapshot writes. ReplaceSnapshot commits the sheets, the last-sync
	// marker, and the rebuilt search index in a single transaction; on any
	// error the previous snapshot and index remain authoritative.
	ReplaceSnapshot(ctx context.Context, sheets []*Sheet) error
	LastSync() (*time.Time, error)

	// Point lookups and listings
	ListSheets() ([]*Sheet, error)
	GetSheet(title string) (*Sheet, error)
	GetRow(id string) (*Row, error)
	GetRowByDBID(dbID string) (*Row, error)
	ListImageURLs() ([]string, error)

	// Queries
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Relationships(ctx context.Context, rowID string) ([]RelationshipGroup, error)
	SearchSpecial(ctx context.Context, special Special) ([]SearchResult, error)
}
