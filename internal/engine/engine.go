// Package engine orchestrates the sync pipeline: fetch the spreadsheet,
// normalize every eligible sheet, and commit the snapshot with its rebuilt
// search index in one transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ianyh/castle/internal/images"
	"github.com/ianyh/castle/internal/normalize"
	"github.com/ianyh/castle/internal/notifier"
	"github.com/ianyh/castle/internal/sheets"
	"github.com/ianyh/castle/pkg/core"
)

// ErrSyncInProgress is returned when a sync is requested while another one
// is still running.
var ErrSyncInProgress = errors.New("a sync is already in progress")

// Fetcher retrieves the spreadsheet's eligible sheets. Implemented by
// sheets.Client.
type Fetcher interface {
	Fetch(ctx context.Context) ([]sheets.SheetData, error)
}

// ImagePreloader downloads row images into a local cache. Implemented by
// images.Preloader.
type ImagePreloader interface {
	Preload(ctx context.Context, urls []string, progress images.Progress) (images.Stats, error)
}

// Config holds engine configuration.
type Config struct {
	// Store persists snapshots and answers queries. Required.
	Store core.Store
	// Fetcher retrieves spreadsheet data. Required.
	Fetcher Fetcher
	// Normalizer turns fetched sheets into the stored shape. Required.
	Normalizer *normalize.Normalizer
	// Preloader is optional; PreloadImages fails without one.
	Preloader ImagePreloader
	// Notifier is optional.
	Notifier *notifier.Notifier
	// Logger is optional.
	Logger *slog.Logger
}

// Engine runs syncs and image preloads against the store.
type Engine struct {
	store      core.Store
	fetcher    Fetcher
	normalizer *normalize.Normalizer
	preloader  ImagePreloader
	notifier   *notifier.Notifier
	logger     *slog.Logger

	syncMu sync.Mutex
}

// New creates an engine from the given configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		store:      cfg.Store,
		fetcher:    cfg.Fetcher,
		normalizer: cfg.Normalizer,
		preloader:  cfg.Preloader,
		notifier:   cfg.Notifier,
		logger:     logger,
	}, nil
}

// Sync fetches the spreadsheet, normalizes every eligible sheet, and
// replaces the stored snapshot. The completed run is returned; a failed
// fetch or commit is recorded on the run before the error comes back. Only
// one sync runs at a time.
func (e *Engine) Sync(ctx context.Context) (*core.SyncRun, error) {
	if !e.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.syncMu.Unlock()

	run, err := e.store.CreateSyncRun()
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	e.logger.Info("sync started", "run_id", run.ID)
	e.broadcast(notifier.Event{Type: notifier.EventSyncStarted, SyncRunID: run.ID})

	sheetData, err := e.fetcher.Fetch(ctx)
	if err != nil {
		return run, e.fail(run, fmt.Errorf("failed to fetch spreadsheet: %w", err))
	}

	normalized := make([]*core.Sheet, 0, len(sheetData))
	for _, data := range sheetData {
		normalized = append(normalized, e.normalizer.Sheet(data))
	}

	if err := e.store.ReplaceSnapshot(ctx, normalized); err != nil {
		return run, e.fail(run, fmt.Errorf("failed to store snapshot: %w", err))
	}

	if err := e.store.CompleteSyncRun(run.ID, core.SyncStatusCompleted, ""); err != nil {
		return run, fmt.Errorf("failed to complete sync run: %w", err)
	}
	run.Status = core.SyncStatusCompleted

	e.logger.Info("sync completed", "run_id", run.ID, "sheets", len(normalized))
	e.broadcast(notifier.Event{Type: notifier.EventSyncCompleted, SyncRunID: run.ID})
	return run, nil
}

// Syncing reports whether a sync is currently running.
func (e *Engine) Syncing() bool {
	if e.syncMu.TryLock() {
		e.syncMu.Unlock()
		return false
	}
	return true
}

// PreloadImages downloads every image URL in the current snapshot into the
// image cache.
func (e *Engine) PreloadImages(ctx context.Context, progress images.Progress) (images.Stats, error) {
	if e.preloader == nil {
		return images.Stats{}, fmt.Errorf("no image preloader configured")
	}

	urls, err := e.store.ListImageURLs()
	if err != nil {
		return images.Stats{}, fmt.Errorf("failed to list image urls: %w", err)
	}
	return e.preloader.Preload(ctx, urls, progress)
}

func (e *Engine) fail(run *core.SyncRun, err error) error {
	run.Status = core.SyncStatusFailed
	run.Error = err.Error()
	if completeErr := e.store.CompleteSyncRun(run.ID, core.SyncStatusFailed, err.Error()); completeErr != nil {
		e.logger.Error("failed to record sync failure", "run_id", run.ID, "error", completeErr)
	}
	e.logger.Error("sync failed", "run_id", run.ID, "error", err)
	e.broadcast(notifier.Event{Type: notifier.EventSyncFailed, SyncRunID: run.ID, Error: err.Error()})
	return err
}

func (e *Engine) broadcast(event notifier.Event) {
	if e.notifier != nil {
		e.notifier.Broadcast(event)
	}
}
