package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// EchoKey is the echo context key holding the request scoped logger
const EchoKey = "logger"

// WithRequestID tags ctx with the ID of the request being served
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID carried by ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithUserID tags ctx with the authenticated user
func WithUserID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the authenticated user carried by ctx, or 0
func UserID(ctx context.Context) uint {
	id, _ := ctx.Value(userIDKey).(uint)
	return id
}

// FromContext returns the service logger annotated with the request and user in ctx.
// Background jobs get the plain logger.
func FromContext(ctx context.Context) *zap.Logger {
	l := GetLogger()
	if id := RequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if id := UserID(ctx); id != 0 {
		l = l.With(zap.Uint("user_id", id))
	}
	return l
}

// Attach stores ctx on the request and refreshes the echo logger from it
func Attach(ctx context.Context, c echo.Context) {
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set(EchoKey, FromContext(ctx))
}

// FromEcho retrieves the request scoped logger from the Echo context
func FromEcho(c echo.Context) *zap.Logger {
	l, ok := c.Get(EchoKey).(*zap.Logger)
	if !ok {
		return FromContext(c.Request().Context())
	}
	return l
}
