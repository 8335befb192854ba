// Package logging builds the zerolog loggers used across registry-manager.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel overrides the level chosen by flags.
const EnvLogLevel = "REGISTRY_MANAGER_LOG_LEVEL"

// Options configures New.
type Options struct {
	Level   zerolog.Level
	NoColor bool
	JSON    bool // structured JSON lines instead of console output
}

// New returns a logger writing to w. The REGISTRY_MANAGER_LOG_LEVEL
// environment variable, when set to a known level, wins over opts.Level.
func New(w io.Writer, opts Options) zerolog.Logger {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}

	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}
	return zerolog.New(out).Level(opts.Level).With().Timestamp().Logger()
}

// ParseLevel maps a level name onto a zerolog level. The second result is
// false for empty or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// LevelFor picks the level implied by the --verbose and --quiet flags.
func LevelFor(verbose, quiet bool) zerolog.Level {
	switch {
	case quiet:
		return zerolog.ErrorLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
