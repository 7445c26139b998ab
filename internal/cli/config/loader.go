package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Package-level koanf instance and config file tracking.
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// GetCurrentConfig returns the most recently loaded config, or nil before
// the first LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// findConfigFile finds the config file to use.
// Priority: explicit path > castle.yaml > castle.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"castle.yaml", "castle.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// GetConfigFileUsed returns the path of the config file that was loaded,
// or empty if none was.
func GetConfigFileUsed() string {
	return configFileUsed
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config file >
// defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Scalar defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"spreadsheet_id": DefaultSpreadsheetID,
		"database":       DefaultDatabasePath,
		"cache_dir":      DefaultCacheDir,
		"port":           DefaultPort,
		"verbose":        false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file.
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: CASTLE_API_KEY -> api_key.
	if err := k.Load(env.Provider("CASTLE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CASTLE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// List defaults apply only when a layer didn't set them; an explicit
	// empty list in the config file stays empty.
	if !k.Exists("ignored_sheets") {
		cfg.IgnoredSheets = DefaultIgnoredSheets()
	}
	if !k.Exists("search_sheets") {
		cfg.SearchSheets = DefaultSearchSheets()
	}
	if !k.Exists("special_sheets") {
		cfg.SpecialSheets = DefaultSpecialSheets()
	}
	if !k.Exists("specials") {
		cfg.Specials = DefaultSpecials()
	}

	currentConfig = cfg
	return cfg, nil
}
