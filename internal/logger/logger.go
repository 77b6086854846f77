package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger represents application logger.
type Logger struct {
	*slog.Logger
}

// Options configure NewWithOptions.
type Options struct {
	// Level is a slog level: -4 debug, 0 info, 4 warn, 8 error.
	Level int
	// Format is "text" or "json".
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// New creates new Logger instance with the specified level.
func New(level int) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions creates a Logger writing to opts.Output in opts.Format.
func NewWithOptions(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: slog.Level(opts.Level)}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Fatal is equivalent to Error followed by os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}
