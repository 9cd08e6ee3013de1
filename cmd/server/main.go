package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/cpportal-backend/config"
	"github.com/ikkim/cpportal-backend/internal/app/controller"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	"github.com/ikkim/cpportal-backend/internal/cache"
	"github.com/ikkim/cpportal-backend/internal/db"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	"github.com/ikkim/cpportal-backend/internal/router"
	"github.com/ikkim/cpportal-backend/internal/scheduler"
	"github.com/ikkim/cpportal-backend/internal/storage"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	redisstore "github.com/ikkim/cpportal-backend/pkg/redis"
)

const (
	shutdownTimeout    = 10 * time.Second
	localBlacklistSize = 10000
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := cfg.Server.LogLevel
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Server.LogFormat,
		Service:     "cpportal",
		EnableColor: cfg.Server.LogFormat == "console",
	})

	logger.Info("Starting CP Portal Backend Server", map[string]interface{}{
		"environment":    cfg.Server.Environment,
		"port":           cfg.Server.Port,
		"log_level":      logLevel,
		"storage_driver": cfg.Storage.Driver,
		"redis_enabled":  cfg.Redis.Enabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if _, err := db.SeedAdmin(db.GetDB(), cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		logger.Warn("Failed to seed admin", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Redis backs the submission lock and token blacklist when enabled;
	// otherwise both stay in process memory (single instance only)
	guard := service.NewLocalSubmissionGuard()
	blacklist := service.NewLocalTokenBlacklist(localBlacklistSize, cfg.JWT.RefreshTokenExpiry)
	materialCache := cache.New[*model.Material]("material", cfg.Cache.Size, cfg.Cache.TTL)
	materialOpts := []service.MaterialServiceOption{service.WithMaterialCache(materialCache)}
	if cfg.Redis.Enabled {
		if err := redisstore.Init(&cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer func() {
			if err := redisstore.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
		store := redisstore.NewStore(redisstore.GetClient())
		guard = service.NewRedisSubmissionGuard(store, cfg.Redis.SubmissionLockTTL)
		blacklist = store

		// every instance caches materials; writes elsewhere must reach ours
		if err := store.SubscribeInvalidations(ctx, materialCache.Invalidate); err != nil {
			logger.Fatal("Failed to subscribe to cache invalidations", err)
		}
		materialOpts = append(materialOpts, service.WithCacheInvalidator(store))
	}

	// Object storage for icons and verification images
	uploader, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", err)
	}
	if m, ok := uploader.(*storage.MinioStorage); ok {
		if err := m.EnsureBucket(ctx); err != nil {
			logger.Fatal("Failed to prepare MinIO bucket", err)
		}
	}

	// Event hub for dashboard sockets
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	materialRepo := repository.NewMaterialRepository(db.GetDB())
	notificationRepo := repository.NewNotificationRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		blacklist,
		hub,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, materialRepo, hub)
	materialService := service.NewMaterialService(
		materialRepo,
		append(materialOpts,
			service.WithSubmissionGuard(guard),
			service.WithEventPublisher(hub),
			service.WithReviewNotifier(notificationService),
		)...,
	)

	// Stale review reminders
	if cfg.Scheduler.Enabled {
		reminders := scheduler.NewStaleReviewScheduler(
			notificationService,
			cfg.Scheduler.StaleReviewCron,
			cfg.Scheduler.StaleReviewAfter,
		)
		if err := reminders.Start(); err != nil {
			logger.Fatal("Failed to start stale review scheduler", err)
		}
		defer reminders.Stop()
	}

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	materialController := controller.NewMaterialController(materialService)
	adminMaterialController := controller.NewAdminMaterialController(materialService)
	uploadController := controller.NewUploadController(uploader, cfg.Storage.MaxUploadBytes)
	notificationController := controller.NewNotificationController(notificationService)
	wsController := controller.NewWSController(hub, cfg.CORS.AllowedOrigins)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, authService)

	// Setup router
	r := router.NewRouter(
		authController,
		materialController,
		adminMaterialController,
		uploadController,
		notificationController,
		wsController,
		authMiddleware,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
