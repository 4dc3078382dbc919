// Package ctxlog provides context keys for safely passing a slog.Logger
// instance through context.Context, plus a helper for stamping the active
// tenant onto request-scoped log lines.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the slog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If no logger is
// found, it returns the process default logger so library code always has
// somewhere to write.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithTenant returns a context whose embedded logger carries the tenant key
// on every subsequent line. Pass an empty key to tag central (tenant-less)
// work explicitly.
func WithTenant(ctx context.Context, tenantKey string) context.Context {
	logger := FromContext(ctx)
	if tenantKey == "" {
		return WithLogger(ctx, logger.With("tenant", "central"))
	}
	return WithLogger(ctx, logger.With("tenant", tenantKey))
}
