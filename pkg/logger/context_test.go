package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	previous := log
	log = zap.New(core)
	t.Cleanup(func() { log = previous })
	return logs
}

func TestFromContextAddsRequestAndUser(t *testing.T) {
	logs := observe(t)

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), 7)
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, uint(7), UserID(ctx))

	FromContext(ctx).Info("ticket created")
	FromContext(context.Background()).Info("sla check")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, uint64(7), fields["user_id"])
	assert.Empty(t, entries[1].ContextMap())
}

func TestAttachSharesLoggerWithEcho(t *testing.T) {
	logs := observe(t)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	Attach(WithRequestID(c.Request().Context(), "req-2"), c)

	assert.Equal(t, "req-2", RequestID(c.Request().Context()))
	FromEcho(c).Info("handled")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-2", logs.All()[0].ContextMap()["request_id"])
}
