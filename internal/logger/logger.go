// Package logger builds the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/predictd/internal/env"
)

type options struct {
	writer    io.Writer
	level     *slog.LevelVar
	logFile   string
	logToFile bool
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile enables or disables the rotating file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *options) { o.logToFile = enabled }
}

// WithLogFile sets the rotating log file path.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithLevel sets the level variable shared with the config watcher.
func WithLevel(level *slog.LevelVar) Option {
	return func(o *options) { o.level = level }
}

// WithWriter replaces stdout as the console sink.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// New creates a logger for the given environment. Development gets a colored
// console handler, everything else gets JSON.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		writer:  os.Stdout,
		logFile: filepath.Join("logs", "predictd.log"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.level == nil {
		o.level = new(slog.LevelVar)
	}

	w := o.writer
	if o.logToFile && o.logFile != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	var handler slog.Handler
	switch environment {
	case env.Development:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      o.level,
			TimeFormat: time.TimeOnly,
			NoColor:    o.logToFile,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: o.level})
	}

	return slog.New(handler)
}

// ParseLevel parses a level name such as "debug", "info", "warn" or "error".
func ParseLevel(raw string) (slog.Level, error) {
	clean := strings.ToLower(strings.TrimSpace(raw))
	switch clean {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		clean = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(clean)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", raw)
	}

	return level, nil
}
