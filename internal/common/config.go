package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	Client  ClientConfig  `toml:"client"`
	Monitor MonitorConfig `toml:"monitor"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                      // "stdout", "file"
}

// ClientConfig tunes the server API clients built by the registry
type ClientConfig struct {
	TimeoutSeconds        int `toml:"timeout_seconds" validate:"min=1"`        // Per-request wall-clock timeout
	RequestsPerSecond     int `toml:"requests_per_second" validate:"min=1"`    // Transport rate limit
	EnrichmentConcurrency int `toml:"enrichment_concurrency" validate:"min=1"` // Max concurrent per-series volume fetches
}

// MonitorConfig drives the scheduled connectivity sweep
type MonitorConfig struct {
	Schedule string `toml:"schedule"` // Cron schedule format
}

// NewDefaultConfig returns configuration defaults
func NewDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/folio",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Client: ClientConfig{
			TimeoutSeconds:        10,
			RequestsPerSecond:     10,
			EnrichmentConcurrency: 8,
		},
		Monitor: MonitorConfig{
			Schedule: "@every 5m",
		},
	}
}

// LoadFromFiles loads configuration from defaults, then merges each config
// file in order (later files override earlier ones), then applies environment
// variable overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against struct validation rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if path := os.Getenv("FOLIO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FOLIO_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}
	if timeout := os.Getenv("FOLIO_CLIENT_TIMEOUT_SECONDS"); timeout != "" {
		if v, err := strconv.Atoi(timeout); err == nil {
			config.Client.TimeoutSeconds = v
		}
	}
	if rps := os.Getenv("FOLIO_CLIENT_REQUESTS_PER_SECOND"); rps != "" {
		if v, err := strconv.Atoi(rps); err == nil {
			config.Client.RequestsPerSecond = v
		}
	}
	if concurrency := os.Getenv("FOLIO_CLIENT_ENRICHMENT_CONCURRENCY"); concurrency != "" {
		if v, err := strconv.Atoi(concurrency); err == nil {
			config.Client.EnrichmentConcurrency = v
		}
	}
	if schedule := os.Getenv("FOLIO_MONITOR_SCHEDULE"); schedule != "" {
		config.Monitor.Schedule = schedule
	}
}
