package logger

import (
	"context"
	"log/slog"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// With returns a new context that includes a logger with fields.
func With(ctx context.Context, fields ...any) context.Context {
	l := From(ctx).With(fields...)
	return context.WithValue(ctx, loggerKey, l)
}

// From returns the logger stored in context, or default if missing.
func From(ctx context.Context) *slog.Logger {
	if l, ok := lookup(ctx); ok {
		return l
	}
	return LoggerWrapper()
}

// Scoped prefers the request logger carried by ctx (trace id, user id) and
// falls back to the component's own logger outside a request.
func Scoped(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := lookup(ctx); ok {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return LoggerWrapper()
}

func lookup(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loggerKey).(*slog.Logger)
	return l, ok && l != nil
}
