package middleware

import (
	"net/http"
	"strings"

	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPExtractor returns how the client IP is read. Without a trusted proxy the
// peer address is used, so X-Forwarded-For cannot be spoofed to dodge RateLimit.
func IPExtractor(trustProxy bool) echo.IPExtractor {
	if trustProxy {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}

// RateLimit limits requests per client IP with echo's in-memory limiter
func RateLimit(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.RequestsPerSecond),
		Burst:     cfg.Burst,
		ExpiresIn: cfg.ExpiresIn,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Enabled {
				return true
			}
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/uploads/")
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.FromEcho(c).Warn("Rate limit exceeded",
				zap.String("identifier", identifier),
				zap.String("path", c.Request().URL.Path))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests, try again later"})
		},
	})
}
