package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ianyh/castle/internal/cli/config"
	"github.com/ianyh/castle/internal/engine"
	"github.com/ianyh/castle/internal/images"
	"github.com/ianyh/castle/internal/normalize"
	"github.com/ianyh/castle/internal/notifier"
	"github.com/ianyh/castle/internal/sheets"
	"github.com/ianyh/castle/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *state.SQLiteStore
	Notifier *notifier.Notifier
}

// NewCommandContext opens the snapshot store and returns the shared command
// dependencies, plus a cleanup function that must be called (typically via
// defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Notifier: notifier.New(),
	}, cleanup, nil
}

// Engine builds the sync engine on top of the command context. It needs an
// API key, so query-only commands never call it.
func (c *CommandContext) Engine(cmd *cobra.Command) (*engine.Engine, error) {
	client, err := sheets.New(cmd.Context(), sheets.Config{
		SpreadsheetID: c.Cfg.SpreadsheetID,
		APIKey:        c.Cfg.APIKey,
		IgnoredSheets: c.Cfg.IgnoredSheets,
		Logger:        c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	preloader, err := images.NewPreloader(images.Config{
		CacheDir: c.Cfg.CacheDir,
		Logger:   c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image preloader: %w", err)
	}

	return engine.New(engine.Config{
		Store:   c.Store,
		Fetcher: client,
		Normalizer: normalize.New(normalize.Config{
			ForceFrozenColumns: c.Cfg.ForceFrozenColumns,
			Logger:             c.Logger,
		}),
		Preloader: preloader,
		Notifier:  c.Notifier,
		Logger:    c.Logger,
	})
}

// Preloader builds a standalone image preloader for commands that do not
// need the full engine.
func (c *CommandContext) Preloader() (*images.Preloader, error) {
	return images.NewPreloader(images.Config{
		CacheDir: c.Cfg.CacheDir,
		Logger:   c.Logger,
	})
}

func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback for commands run without the root's config loading.
	return &config.Config{
		SpreadsheetID: config.DefaultSpreadsheetID,
		APIKey:        os.Getenv("CASTLE_API_KEY"),
		DatabasePath:  config.DefaultDatabasePath,
		CacheDir:      config.DefaultCacheDir,
		Port:          config.DefaultPort,
		IgnoredSheets: config.DefaultIgnoredSheets(),
		SearchSheets:  config.DefaultSearchSheets(),
		SpecialSheets: config.DefaultSpecialSheets(),
		Specials:      config.DefaultSpecials(),
	}
}

func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && dir != "" && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(state.Config{
		SearchSheets:  cfg.SearchSheets,
		SpecialSheets: cfg.SpecialSheets,
		Logger:        logger,
	})
	if err := store.Open(cfg.DatabasePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
