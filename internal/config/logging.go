package config

import "apiscribe/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string          `yaml:"format" validate:"oneof=console json"`
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// Options converts the section for logging.Initialize.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}
