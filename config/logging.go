package config

import (
	"fmt"
	"strings"
)

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Console switches from JSON lines to human-readable output.
	Console bool `json:"console"`
	// File, when set, receives a copy of every entry and is rotated by size.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	if c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging: negative retention")
	}
	return nil
}
