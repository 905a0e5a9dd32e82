// Package logging builds the zerolog logger shared by the CLI and the
// simulation engine.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatPretty  = "pretty"
	FormatJSON    = "json"
)

// Config contains logging configuration.
type Config struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console pretty json"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
}

// New creates a logger writing to w. An unknown level falls back to info.
func New(cfg Config, w io.Writer) zerolog.Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	switch strings.ToLower(cfg.Format) {
	case FormatConsole, FormatPretty:
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly})
	default:
		zl = zerolog.New(w)
	}
	return zl.Level(level).With().Timestamp().Logger()
}
