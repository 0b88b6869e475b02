package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"linkup/database"
	"linkup/internal/config"
	"linkup/internal/microservices/http-api/handler"
	"linkup/internal/microservices/http-api/middleware"
	"linkup/internal/microservices/http-api/repository"
	"linkup/internal/microservices/http-api/service"
	"linkup/internal/microservices/presence"
	"linkup/internal/microservices/push"
	"linkup/internal/microservices/websocket"
)

func main() {
	// 1. Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// 2. Set up structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// 3. Connect to the database
	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}

	// 4. Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	pushSubRepo := repository.NewPushSubscriptionRepository(db)

	// 5. Presence registry: in-memory for a single instance, Redis when
	// several instances must share one view of who is online
	var registry presence.Registry
	if cfg.PresenceBackend == "redis" {
		redisRegistry, err := presence.NewRedisRegistry(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("could not connect presence registry to redis: %v", err)
		}
		defer redisRegistry.Close()
		registry = redisRegistry
	} else {
		registry = presence.NewMemoryRegistry()
	}

	// 6. Services and delivery plumbing
	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg)

	hub := websocket.NewHub(registry, authService)
	broadcaster := presence.NewBroadcaster(
		registry,
		userRepo,
		hub,
		cfg.BroadcastMinInterval,
		cfg.ProfileCacheSize,
		cfg.ProfileCacheTTL,
	)
	hub.SetBroadcaster(broadcaster)

	var dispatcher service.PushDispatcher
	if cfg.PushEnabled() {
		sender := push.NewWebPushSender(cfg.VAPIDSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushTTL)
		dispatcher = push.NewDispatcher(pushSubRepo, sender, cfg.PushTimeout)
	} else {
		logger.Warn("VAPID keys not configured, push delivery disabled")
	}

	notificationService := service.NewNotificationService(notificationRepo, dispatcher, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go broadcaster.Run(ctx)

	// 7. Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/check-conn", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is alive and database connected"})
	})

	authHandler := handler.NewAuthHandler(authService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	pushHandler := handler.NewPushHandler(pushSubRepo, cfg.VAPIDPublicKey)
	presenceHandler := handler.NewPresenceHandler(registry, userRepo)

	api := r.Group("/api/v1")
	authHandler.RegisterRoutes(api.Group("/auth"))
	api.GET("/push/vapid-public-key", pushHandler.VAPIDPublicKey)

	protected := api.Group("", middleware.AuthMiddleware(authService))
	notificationHandler.RegisterRoutes(protected.Group("/notifications"))
	pushHandler.RegisterRoutes(protected.Group("/push"))
	presenceHandler.RegisterRoutes(protected.Group("/presence"))

	// WebSocket upgrade; auth is optional here, clients may also
	// authenticate over the channel
	r.GET("/ws", websocket.WSHandler(hub, authService))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err.Error())
	}
}

// newLogger builds the process logger from LOG_LEVEL / LOG_FORMAT
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
