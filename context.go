package rebind

import (
	"context"

	"go.uber.org/zap"
)

type trackingKey struct{}

type loggerKey struct{}

// WithoutTracking marks ctx so that resolutions made under it never register clients.
// The index passes such a context to ReExecute, since the watcher already tracks the client.
func WithoutTracking(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackingKey{}, true)
}

// TrackingSuppressed reports whether ctx was marked by WithoutTracking.
func TrackingSuppressed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	suppressed, _ := ctx.Value(trackingKey{}).(bool)
	return suppressed
}

// ContextWithLogger returns a context carrying logger.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger stored in ctx, or fallback if there is none.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return fallback
}
