// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/scan"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvLogLevel    = "COVERME_LOG_LEVEL"
	EnvPort        = "COVERME_PORT"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Sources
	Registry       string `json:"registry,omitempty"`
	UseBrowser     bool   `json:"use_browser,omitempty"`
	BrowserTimeout int    `json:"browser_timeout_seconds,omitempty" validate:"gte=0"`

	// Detection
	LegacyScores         bool `json:"legacy_scores,omitempty"`
	MinDescriptionLength int  `json:"min_description_length,omitempty" validate:"gte=0"`
	DetectTimeout        int  `json:"detect_timeout_seconds,omitempty" validate:"gte=0"`

	// AcceptThreshold is nil when unset; 0 accepts every candidate.
	AcceptThreshold *int `json:"accept_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
	Concurrency     int  `json:"concurrency,omitempty" validate:"gte=0,lte=64"` // parallel URL loads in the CLI

	// Service
	Port        int    `json:"port,omitempty" validate:"gte=0,lte=65535"`
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Output
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Verbose  bool   `json:"verbose,omitempty"`
}

// Defaults returns the values used when neither the config file nor flags set them.
func Defaults() Config {
	return Config{
		BrowserTimeout:  60,
		DetectTimeout:   5,
		AcceptThreshold: Int(60),
		Concurrency:     4,
		Port:            8080,
		LogLevel:        "info",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Registry != "" {
		if _, err := os.Stat(c.Registry); os.IsNotExist(err) {
			return fmt.Errorf("config error: registry file not found: %s", c.Registry)
		}
	}

	return nil
}

// ApplyEnv fills empty fields from the environment.
func (c *Config) ApplyEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if c.LogLevel == "" {
		c.LogLevel = os.Getenv(EnvLogLevel)
	}
	if c.Port == 0 {
		var port int
		if _, err := fmt.Sscanf(os.Getenv(EnvPort), "%d", &port); err == nil {
			c.Port = port
		}
	}
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Registry == "" {
		result.Registry = defaults.Registry
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	if result.BrowserTimeout == 0 {
		result.BrowserTimeout = defaults.BrowserTimeout
	}
	if result.MinDescriptionLength == 0 {
		result.MinDescriptionLength = defaults.MinDescriptionLength
	}
	if result.DetectTimeout == 0 {
		result.DetectTimeout = defaults.DetectTimeout
	}
	if result.AcceptThreshold == nil {
		result.AcceptThreshold = defaults.AcceptThreshold
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// DetectorConfig builds the detector tunables this configuration selects.
func (c *Config) DetectorConfig() detect.Config {
	cfg := detect.DefaultConfig()
	if c.LegacyScores {
		cfg = detect.LegacyConfig()
	}
	if c.MinDescriptionLength > 0 {
		cfg.MinDescriptionLength = c.MinDescriptionLength
	}
	return cfg
}

// ScanOptions builds the scanner tunables this configuration selects.
func (c *Config) ScanOptions() scan.Options {
	opts := scan.DefaultOptions()
	if c.DetectTimeout > 0 {
		opts.DetectTimeout = time.Duration(c.DetectTimeout) * time.Second
	}
	if c.AcceptThreshold != nil {
		opts.AcceptThreshold = *c.AcceptThreshold
	}
	return opts
}

// Int returns a pointer to v, for optional numeric settings.
func Int(v int) *int {
	return &v
}

// BrowserTimeoutDuration is BrowserTimeout as a duration.
func (c *Config) BrowserTimeoutDuration() time.Duration {
	return time.Duration(c.BrowserTimeout) * time.Second
}
