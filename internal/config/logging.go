package config

import (
	"strings"

	"permutex/internal/logging"
	"permutex/internal/types"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // console, json
	File       string          `yaml:"file,omitempty"`       // stderr when empty
	Categories map[string]bool `yaml:"categories,omitempty"` // per-category toggles
}

// Validate checks level and format.
func (c *LoggingConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return &types.ConfigurationError{Field: "logging.level", Reason: err.Error(), Err: err}
	}
	switch strings.ToLower(c.Format) {
	case "", "console", "text", "json":
	default:
		return types.NewConfigurationError("logging.format", "unknown format %q (valid: console, json)", c.Format)
	}
	return nil
}

// ToLogging converts to the logger's own config type.
func (c *LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}
