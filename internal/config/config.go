// Package config provides configuration management for statetrail.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	DataDir  string         `yaml:"dataDir,omitempty"`
	LogLevel string         `yaml:"logLevel,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	// Path to the database file. Defaults to <dataDir>/statetrail.db.
	Path string `yaml:"path,omitempty"`
	// BusyTimeout applied via DSN. Defaults to 5s.
	BusyTimeout time.Duration `yaml:"busyTimeout,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:  "./data",
		LogLevel: "info",
		Database: DatabaseConfig{
			BusyTimeout: 5 * time.Second,
		},
	}
}

// Load reads the YAML file at path (if non-empty), applies STATETRAIL_* env
// overrides on top of the defaults, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "statetrail.db")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STATETRAIL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("STATETRAIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STATETRAIL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: dataDir must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("%w: unknown logLevel %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("%w: database.busyTimeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
