// Package config loads the runtime configuration, layered lowest to highest:
// built-in defaults, a YAML file, LERNKASTEN_* environment variables, then
// command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "LERNKASTEN_"

// Config holds the runtime settings.
type Config struct {
	Addr         string `koanf:"addr"`          // HTTP listen address
	DB           string `koanf:"db"`            // path to the SQLite file
	QueueLimit   int    `koanf:"queue_limit"`   // default review batch size
	NewLimit     int    `koanf:"new_limit"`     // default cap on new cards per batch
	ForecastDays int    `koanf:"forecast_days"` // default forecast horizon
	Timezone     string `koanf:"timezone"`      // IANA name for day boundaries
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:         ":8080",
		DB:           "lernkasten.db",
		QueueLimit:   20,
		NewLimit:     10,
		ForecastDays: 7,
		Timezone:     "UTC",
	}
}

// Load merges the configuration layers. path may be empty to skip the file
// layer; flags may be nil to skip the flag layer.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		// LERNKASTEN_QUEUE_LIMIT -> queue_limit
		return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
