// Package config provides configuration management for the castle CLI.
//
// Configuration merges four layers, lowest to highest precedence: built-in
// defaults, a castle.yaml/castle.yml file, CASTLE_-prefixed environment
// variables, and command-line flags. The curation lists (ignored sheets,
// search sheets, specials) default to the known layout of the tracked
// spreadsheet and can be overridden as the sheet evolves.
package config

import (
	"github.com/ianyh/castle/pkg/core"
)

// Default connection values for the tracked spreadsheet.
const (
	DefaultSpreadsheetID = "1f8OJIQhpycljDQ8QNDk_va1GJ1u7RVoMaNjFcHH0LKk"
	DefaultDatabasePath  = "castle.db"
	DefaultCacheDir      = "image-cache"
	DefaultPort          = 8532
)

// Config holds all CLI configuration options.
type Config struct {
	// SpreadsheetID identifies the source spreadsheet.
	SpreadsheetID string `koanf:"spreadsheet_id"`
	// APIKey authenticates against the Sheets API. No default; it comes
	// from the config file, CASTLE_API_KEY, or --api-key.
	APIKey string `koanf:"api_key"`
	// DatabasePath is the SQLite snapshot database file.
	DatabasePath string `koanf:"database"`
	// CacheDir is where preloaded images are stored.
	CacheDir string `koanf:"cache_dir"`
	// Port is the API server listen port.
	Port int `koanf:"port"`
	// Verbose switches logging to debug level.
	Verbose bool `koanf:"verbose"`

	// IgnoredSheets lists tab titles excluded from sync.
	IgnoredSheets []string `koanf:"ignored_sheets"`
	// SearchSheets is the allow-list for free-text search.
	SearchSheets []string `koanf:"search_sheets"`
	// SpecialSheets is the allow-list for specials queries.
	SpecialSheets []string `koanf:"special_sheets"`
	// ForceFrozenColumns lists column titles always treated as frozen.
	ForceFrozenColumns []string `koanf:"force_frozen_columns"`
	// Specials is the curated specials catalogue.
	Specials []core.Special `koanf:"specials"`
}

// DefaultIgnoredSheets are the bookkeeping tabs of the tracked spreadsheet.
func DefaultIgnoredSheets() []string {
	return []string{"Header", "Calculator", "Experience", "Events", "Missions", "Crystal Reqs"}
}

// DefaultSearchSheets are the data tabs answered by free-text search.
func DefaultSearchSheets() []string {
	return []string{
		"Characters", "Abilities", "Soul Breaks", "Limit Breaks",
		"Status", "Other", "Magicite", "Hero Abilities",
	}
}

// DefaultSpecialSheets are the tabs answered by specials queries.
func DefaultSpecialSheets() []string {
	return []string{"Soul Breaks", "Limit Breaks", "Other"}
}

// DefaultSpecials is the curated specials catalogue, keyed to status ids in
// the tracked spreadsheet.
func DefaultSpecials() []core.Special {
	return []core.Special{
		{Name: "Aegis Break", StatusIDs: []string{"646033", "646111", "646121", "646131", "646141"}},
		{Name: "Full Break Counter", StatusIDs: []string{"6053", "6067"}},
		{Name: "Job Break Counter", StatusIDs: []string{"6054", "6056", "6057"}},
	}
}
