package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ianyh/castle/pkg/core"
)

// CreateSyncRun records the start of a sync and returns the run.
func (s *SQLiteStore) CreateSyncRun() (*core.SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.SyncRun{
		ID:        uuid.New().String(),
		Status:    core.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO sync_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	return run, nil
}

// CompleteSyncRun marks a sync run as completed or failed. errMsg is stored
// only for failed runs.
func (s *SQLiteStore) CompleteSyncRun(id string, status core.SyncStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.Exec(
		`UPDATE sync_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sync run %q: %w", id, core.ErrNotFound)
	}
	return nil
}

// GetSyncRun retrieves a sync run by id.
func (s *SQLiteStore) GetSyncRun(id string) (*core.SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return scanSyncRun(s.db.QueryRow(
		`SELECT id, status, started_at, completed_at, error FROM sync_runs WHERE id = ?`, id,
	), id)
}

// GetLatestSyncRun retrieves the most recently started sync run, or
// core.ErrNotFound before the first sync.
func (s *SQLiteStore) GetLatestSyncRun() (*core.SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return scanSyncRun(s.db.QueryRow(
		`SELECT id, status, started_at, completed_at, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT 1`,
	), "latest")
}

func scanSyncRun(row *sql.Row, key string) (*core.SyncRun, error) {
	run := &core.SyncRun{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&run.ID, &status, &run.StartedAt, &completedAt, &errMsg)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run %q: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	run.Status = core.SyncStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}
