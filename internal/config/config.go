// Package config provides configuration types and defaults for griddash.
package config

import (
	"fmt"
	"time"

	"github.com/npratt/griddash/internal/refresh"
)

// Config holds all configuration for griddash.
type Config struct {
	Tables      string            `yaml:"tables" mapstructure:"tables"` // Path to the tables file (.json or .yaml)
	Refresh     RefreshConfig     `yaml:"refresh" mapstructure:"refresh"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
	UI          UIConfig          `yaml:"ui" mapstructure:"ui"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
}

// RefreshConfig holds scheduler and retry settings.
type RefreshConfig struct {
	Tick           time.Duration `yaml:"tick" mapstructure:"tick"`                       // How often due tables are checked
	RetryThreshold int           `yaml:"retry_threshold" mapstructure:"retry_threshold"` // Consecutive failures before backoff
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"` // 0 = no ceiling
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// WatchConfig holds tables file watcher settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// UIConfig holds terminal display settings.
type UIConfig struct {
	FrameInterval time.Duration `yaml:"frame_interval" mapstructure:"frame_interval"`
}

// PathsConfig holds file paths.
type PathsConfig struct {
	Log string `yaml:"log" mapstructure:"log"` // Debug log written while the TUI owns the terminal
}

// LogRotationConfig holds settings for log file rotation.
// Used for the TUI debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Tables: "tables.json",
		Refresh: RefreshConfig{
			Tick:           500 * time.Millisecond,
			RetryThreshold: refresh.DefaultRetryThreshold,
			InitialBackoff: refresh.DefaultInitialBackoff,
			MaxBackoff:     0,
			UserAgent:      "griddash",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 100 * time.Millisecond,
		},
		UI: UIConfig{
			FrameInterval: 500 * time.Millisecond,
		},
		Paths: PathsConfig{
			Log: ".griddash/griddash.log",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Policy returns the refresh policy described by the config.
func (c *Config) Policy() refresh.Policy {
	return refresh.Policy{
		RetryThreshold: c.Refresh.RetryThreshold,
		InitialBackoff: c.Refresh.InitialBackoff,
		MaxBackoff:     c.Refresh.MaxBackoff,
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Tables == "" {
		return fmt.Errorf("tables path is required")
	}
	if c.Refresh.Tick <= 0 {
		return fmt.Errorf("refresh.tick must be positive, got %v", c.Refresh.Tick)
	}
	if c.Refresh.RetryThreshold < 1 {
		return fmt.Errorf("refresh.retry_threshold must be at least 1, got %d", c.Refresh.RetryThreshold)
	}
	if c.Refresh.InitialBackoff <= 0 {
		return fmt.Errorf("refresh.initial_backoff must be positive, got %v", c.Refresh.InitialBackoff)
	}
	if c.Refresh.MaxBackoff < 0 {
		return fmt.Errorf("refresh.max_backoff must not be negative, got %v", c.Refresh.MaxBackoff)
	}
	if c.UI.FrameInterval <= 0 {
		return fmt.Errorf("ui.frame_interval must be positive, got %v", c.UI.FrameInterval)
	}
	return nil
}
