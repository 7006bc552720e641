// Package logging provides the service's structured logger on top of zerolog.
//
// Terminals get human-readable console output; LOG_FORMAT=json (or any
// non-terminal stderr) gets one JSON object per line. LOG_LEVEL picks the
// minimum level.
//
//	log := logging.Default()
//	log.Info().Str("upload_id", id).Int("rows", n).Msg("upload committed")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = Configure(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

// Nop discards everything; handy in tests.
var Nop = zerolog.Nop()

// Default returns the process-wide logger.
func Default() *zerolog.Logger { return &defaultLogger }

// SetDefault replaces the process-wide logger.
func SetDefault(l zerolog.Logger) { defaultLogger = l }

// Configure builds a stderr logger for the given level and format
// (json, console or auto).
func Configure(level, format string) zerolog.Logger {
	var w io.Writer = os.Stderr
	switch strings.ToLower(format) {
	case "json":
	case "console", "pretty":
		w = console(os.Stderr)
	default:
		if isatty() {
			w = console(os.Stderr)
		}
	}
	return New(w).Level(ParseLevel(level))
}

// New creates a logger writing JSON to w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

type ctxKey struct{}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the default one.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return &l
	}
	return Default()
}

func console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: os.Getenv("NO_COLOR") != ""}
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
