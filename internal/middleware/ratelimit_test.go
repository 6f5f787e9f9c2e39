package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitDeniesAfterBurst(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2, ExpiresIn: time.Minute}))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(config.RateLimitConfig{Enabled: false, RequestsPerSecond: 0.001, Burst: 1, ExpiresIn: time.Minute}))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	newServer := func(trustProxy bool) *echo.Echo {
		e := echo.New()
		e.IPExtractor = IPExtractor(trustProxy)
		e.Use(RateLimit(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1, ExpiresIn: time.Minute}))
		e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		return e
	}
	send := func(e *echo.Echo, remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = remote
		req.Header.Set(echo.HeaderXForwardedFor, forwarded)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	direct := newServer(false)
	assert.Equal(t, http.StatusOK, send(direct, "203.0.113.7:5000", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send(direct, "203.0.113.7:5000", "198.51.100.2"))

	// Behind a private proxy each forwarded client has its own budget
	proxied := newServer(true)
	assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.5:5000", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.5:5000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send(proxied, "10.0.0.5:5000", "198.51.100.1"))
	// A public peer is not trusted as a proxy
	assert.Equal(t, http.StatusOK, send(proxied, "203.0.113.9:5000", "198.51.100.3"))
	assert.Equal(t, http.StatusTooManyRequests, send(proxied, "203.0.113.9:5000", "198.51.100.4"))
}
