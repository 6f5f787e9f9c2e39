// Package router wires the helpdesk HTTP routes.
package router

import (
	"net/http"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/handler"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// New builds the echo instance with global middleware and every route
func New(cfg *config.Config, cache *middleware.TokenCache) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler()
	e.Validator = middleware.NewValidator()
	e.IPExtractor = middleware.IPExtractor(cfg.Server.TrustProxy)

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(prometheus.MetricsMiddleware())
	e.Use(logger.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
	}))
	e.Use(echomiddleware.GzipWithConfig(echomiddleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(echomiddleware.BodyLimit(cfg.Server.BodyLimit))
	e.Use(middleware.RateLimit(cfg.RateLimit))

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	if cfg.Storage.Driver == "local" {
		e.Static("/uploads", cfg.Storage.LocalDir)
	}

	authRequired := middleware.AuthMiddleware(cache)
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	staffOnly := middleware.RequireRole(model.RoleAdmin, model.RoleAgent)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/logout", handler.Logout, authRequired)
	auth.POST("/2fa/setup", handler.SetupTwoFactor, authRequired)
	auth.POST("/2fa/verify", handler.VerifyTwoFactor, authRequired)
	auth.POST("/2fa/disable", handler.DisableTwoFactor, authRequired)

	// Own profile
	me := e.Group("/user/me", authRequired)
	me.GET("", handler.GetMe)
	me.PUT("", handler.UpdateMe)
	me.PUT("/password", handler.ChangePassword)
	me.POST("/avatar", handler.UploadAvatar)
	me.DELETE("/avatar", handler.DeleteAvatar)

	// User administration
	admin := e.Group("/admin", authRequired, adminOnly)
	admin.GET("/users", handler.ListUsers)
	admin.GET("/users/:id", handler.GetUser)
	admin.PATCH("/users/:id/status", handler.UpdateUserStatus)
	admin.POST("/agents", handler.CreateAgent)
	admin.GET("/agents", handler.ListAgents)
	admin.PUT("/agents/:id", handler.UpdateAgent)
	admin.POST("/clients", handler.CreateClient)
	admin.GET("/clients", handler.ListClients)

	// Categories are readable by everyone signed in, managed by admins
	categories := e.Group("/categories", authRequired)
	categories.GET("", handler.ListCategories)
	categories.GET("/:id", handler.GetCategory)
	categories.GET("/:id/subcategories", handler.ListSubcategories)
	categories.POST("", handler.CreateCategory, adminOnly)
	categories.PUT("/:id", handler.UpdateCategory, adminOnly)
	categories.DELETE("/:id", handler.DeleteCategory, adminOnly)
	categories.POST("/:id/subcategories", handler.CreateSubcategory, adminOnly)

	subcategories := e.Group("/subcategories", authRequired, adminOnly)
	subcategories.PUT("/:id", handler.UpdateSubcategory)
	subcategories.DELETE("/:id", handler.DeleteSubcategory)

	helpdesk := e.Group("/helpdesk", authRequired)
	helpdesk.GET("/dashboard", handler.GetDashboard)

	tickets := helpdesk.Group("/tickets")
	tickets.POST("", handler.CreateTicket)
	tickets.GET("", handler.ListTickets)
	tickets.GET("/:id", handler.GetTicket)
	tickets.PUT("/:id", handler.UpdateTicket)
	tickets.PATCH("/:id/status", handler.UpdateTicketStatus)
	tickets.POST("/:id/assign", handler.AssignTicket, staffOnly)
	tickets.GET("/:id/comments", handler.ListComments)
	tickets.POST("/:id/comments", handler.AddComment)
	tickets.GET("/:id/history", handler.GetTicketHistory)
	tickets.POST("/:id/rating", handler.RateTicket)
	tickets.DELETE("/:id", handler.DeleteTicket, adminOnly)

	notifications := helpdesk.Group("/notifications")
	notifications.GET("/my-notifications", handler.ListMyNotifications)
	notifications.GET("/unread-count", handler.UnreadCount)
	notifications.PUT("/read-all", handler.MarkAllNotificationsRead)
	notifications.PUT("/:id/read", handler.MarkNotificationRead)
	notifications.DELETE("/:id", handler.DeleteNotification)
	notifications.DELETE("", handler.ClearReadNotifications)

	slaGroup := helpdesk.Group("/sla")
	slaGroup.GET("/thresholds", handler.GetSLAThresholds)
	slaGroup.GET("/tickets/:id", handler.GetTicketSLA)
	slaGroup.GET("/report", handler.GetSLAReport, adminOnly)
	slaGroup.POST("/check", handler.RunSLACheck, adminOnly)

	return e
}
