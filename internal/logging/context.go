package logging

import (
	"context"
	"log/slog"
)

// Adapters log through the context so every line they emit carries the
// target and operation of the dispatch that called them.

type loggerKey struct{}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return Default()
}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithTarget tags the context logger with a target name.
func WithTarget(ctx context.Context, target string) context.Context {
	return NewContext(ctx, FromContext(ctx).With("target", target))
}

// WithOperation tags the context logger with a dispatch operation.
func WithOperation(ctx context.Context, op string) context.Context {
	return NewContext(ctx, FromContext(ctx).With("operation", op))
}

// DebugContext logs at debug level using the context logger.
func DebugContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

// WarnContext logs at warn level using the context logger.
func WarnContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}
