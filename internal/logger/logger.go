// Package logger provides structured logging for the daemon with a
// human-readable console format, a JSON format for supervised deployments and
// an optional rotating file sink.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	formatJSON   = "json"
	formatPretty = "pretty"
)

// LevelVerbose sits between debug and normal. The daemon's level surface is
// DEBUG < VERBOSE < NORMAL < ERROR; NORMAL maps onto slog's Info.
const LevelVerbose = slog.Level(-2)

// Logger wraps slog.Logger with daemon conveniences.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Config holds logger configuration.
type Config struct {
	Writer      io.Writer
	Format      string
	Environment string
	Level       slog.Level

	// File, when set, additionally writes to a rotating log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	// Auto-detect format based on environment if not specified.
	if cfg.Format == "" {
		if cfg.Environment == "production" {
			cfg.Format = formatJSON
		} else {
			cfg.Format = formatPretty
		}
	}

	var closer io.Closer
	writer := cfg.Writer
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		writer = io.MultiWriter(cfg.Writer, rotating)
		closer = rotating
	}

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				// Surface the daemon's level names instead of slog's.
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(LevelName(level))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == formatJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = newPrettyHandler(writer, opts)
	}

	return &Logger{Logger: slog.New(handler), closer: closer}
}

// Close flushes and closes the file sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Verbose logs at the VERBOSE level.
func (l *Logger) Verbose(msg string, args ...any) {
	l.Log(context.Background(), LevelVerbose, msg, args...)
}

// Fatal logs a fatal error and exits.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}

// ParseLevel converts a daemon level name to a slog.Level. Accepted names are
// DEBUG, VERBOSE, NORMAL and ERROR, case-insensitive.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "VERBOSE":
		return LevelVerbose, nil
	case "NORMAL", "":
		return slog.LevelInfo, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// LevelName returns the daemon name for a slog level.
func LevelName(level slog.Level) string {
	switch {
	case level < LevelVerbose:
		return "DEBUG"
	case level < slog.LevelInfo:
		return "VERBOSE"
	case level < slog.LevelError:
		return "NORMAL"
	default:
		return "ERROR"
	}
}
