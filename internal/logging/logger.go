package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	Level string
	// File enables rotated file output next to stdout when non-empty.
	File string
	JSON bool
}

// New builds a logrus logger writing to stdout and, optionally, a rotated log file.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
		logger.WithField("configured_level", opts.Level).Warn("invalid log level configured, using info")
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type entryKey struct{}

// WithEntry stores a request-scoped log entry in ctx.
func WithEntry(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, entryKey{}, entry)
}

// FromContext returns the request-scoped entry, falling back to fallback.
func FromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if ctx != nil {
		if entry, ok := ctx.Value(entryKey{}).(*logrus.Entry); ok && entry != nil {
			return entry
		}
	}
	if fallback == nil {
		return logrus.StandardLogger()
	}
	return fallback
}
