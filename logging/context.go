package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/http/middleware"
)

type loggerKey struct{}

// WithContext returns logger annotated with the request's trace id and
// user, when present.
func WithContext(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if ctx == nil {
		return logger
	}
	var fields []zap.Field
	if traceID := middleware.GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if user := middleware.GetIdentity(ctx).User; user != "" {
		fields = append(fields, zap.String("user", user))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// FromContext returns the request logger stored by HTTPMiddleware, or fallback.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
			return l
		}
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// ToContext stores logger in ctx.
func ToContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
