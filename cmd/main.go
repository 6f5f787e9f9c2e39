package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/handler"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/notification"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/router"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/sla"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/storage"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/jwtutil"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/scheduler"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/twofactor"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting helpdesk service...", cfg.LogConfig()...)

	prometheus.SetNamespace(cfg.Metrics.Prefix)

	// Initialize database and run migrations
	if _, err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Initialize JWT utility
	jwtutil.Initialize(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
		Issuer:          cfg.JWT.Issuer,
	})
	log.Info("JWT utility initialized")

	tokenCache, err := middleware.NewTokenCache(cfg.TokenCache.TTL, cfg.TokenCache.MaxEntries)
	if err != nil {
		log.Fatal("Failed to create token cache", zap.Error(err))
	}
	defer tokenCache.Close()

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	log.Info("Storage initialized", zap.String("driver", cfg.Storage.Driver))

	notifier := notification.NewService(notification.ChannelsFromConfig(cfg.Notifications)...)
	evaluator := sla.Evaluator{WarningRatio: cfg.SLA.WarningRatio}
	monitor := sla.NewMonitor(evaluator, notifier, log.Named("sla"))

	handler.Init(handler.Dependencies{
		TokenCache:     tokenCache,
		Notifier:       notifier,
		Storage:        store,
		TOTP:           twofactor.New(cfg.TwoFactor.Issuer),
		Evaluator:      evaluator,
		Monitor:        monitor,
		MaxAvatarBytes: cfg.Storage.MaxAvatarBytes,
	})

	// Background jobs
	jobs := scheduler.New(log.Named("scheduler"))
	if err := jobs.Add("sla-monitor", cfg.SLA.Schedule, monitor.Job); err != nil {
		log.Fatal("Failed to schedule SLA monitor", zap.Error(err))
	}
	if err := jobs.Add("revoked-token-retention", cfg.Notifications.RetentionJobSpec, middleware.RevokedTokenRetentionJob); err != nil {
		log.Fatal("Failed to schedule revoked token cleanup", zap.Error(err))
	}
	if cfg.Notifications.RetentionDays > 0 {
		if err := jobs.Add("notification-retention", cfg.Notifications.RetentionJobSpec, notifier.RetentionJob(cfg.Notifications.RetentionDays)); err != nil {
			log.Fatal("Failed to schedule notification retention", zap.Error(err))
		}
	}
	jobs.Start()
	if cfg.SLA.RunOnStartup {
		jobs.RunNow("sla-monitor", monitor.Job)
	}

	e := router.New(cfg, tokenCache)

	// Start server
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := jobs.Stop(ctx); err != nil {
		log.Warn("Background jobs did not stop in time", zap.Error(err))
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}
