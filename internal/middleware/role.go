package middleware

import (
	"net/http"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequireRole only lets users with one of the roles through; it must run after AuthMiddleware
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := CurrentRole(c)
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}

			logger.FromEcho(c).Warn("Role not allowed for route",
				zap.String("role", string(role)),
				zap.String("path", c.Path()))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to access this resource"})
		}
	}
}
