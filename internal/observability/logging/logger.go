package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger with JSON output on stdout.
// The log level is read from LOG_LEVEL (debug, info, warn, error; default info).
func NewLogger() *slog.Logger {
	return newLogger(os.Stdout, true)
}

// NewTextLogger creates a logger with human-readable text output.
// This is useful for local development and the -memory worker mode.
func NewTextLogger() *slog.Logger {
	return newLogger(os.Stdout, false)
}

func newLogger(w io.Writer, jsonOutput bool) *slog.Logger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	opts := &slog.HandlerOptions{
		Level: level,
		// Add source code location for debug runs
		AddSource: level <= slog.LevelDebug,
	}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a LOG_LEVEL value onto a slog level. Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithDispatchID stores the dispatch correlation id in ctx.
func WithDispatchID(ctx context.Context, dispatchID string) context.Context {
	return context.WithValue(ctx, dispatchIDContextKey, dispatchID)
}

// DispatchIDFromContext returns the dispatch id stored in ctx, or "".
func DispatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(dispatchIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WithDispatch returns a logger that carries the dispatch id found in ctx.
// The logger is returned unchanged when ctx has none.
func WithDispatch(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id := DispatchIDFromContext(ctx)
	if id == "" {
		return logger
	}
	return logger.With(slog.String("dispatch_id", id))
}

// WithFields returns a new logger with additional structured fields.
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// FromContext retrieves the logger from the context, or returns the default logger if not found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const (
	loggerContextKey     contextKey = "logger"
	dispatchIDContextKey contextKey = "dispatch_id"
)
