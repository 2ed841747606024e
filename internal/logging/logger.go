package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type Logger struct {
	*slog.Logger
	verbose bool
}

// NewLogger creates a new logger based on the configuration
func NewLogger(format string, verbose bool, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	var level slog.Level
	if verbose {
		level = slog.LevelDebug
	} else {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	// Get application name from args
	var application string
	if len(os.Args) > 0 {
		application = filepath.Base(os.Args[0])
	}

	logger := slog.New(handler).With(
		slog.String("service", application),
	)

	return &Logger{
		Logger:  logger,
		verbose: verbose,
	}
}

// SetAsDefault sets this logger as the default slog logger
func (l *Logger) SetAsDefault() {
	slog.SetDefault(l.Logger)
	// Also set the standard log package to use slog
	if l.verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}
}

// Verbose logs a message only if verbose logging is enabled
func (l *Logger) Verbose(msg string, args ...any) {
	if l.verbose {
		l.Debug(msg, args...)
	}
}

// LogError logs an error with context
func (l *Logger) LogError(msg string, err error, args ...any) {
	allArgs := append([]any{slog.String("error", err.Error())}, args...)
	l.Error(msg, allArgs...)
}

// LogResult logs a pipeline result summary in a structured way
func (l *Logger) LogResult(fields map[string]any) {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	l.Info("pipeline_completed", attrs...)
}
