package main

// @title           Signal Relay API
// @version         1.0
// @description     Chat persistence REST API and the real-time event relay
// @host            localhost:5001
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"signal-relay/internal/adapters/kafka"
	"signal-relay/internal/adapters/storage"
	"signal-relay/internal/api/handlers"
	"signal-relay/internal/api/middleware"
	"signal-relay/internal/api/routes"
	"signal-relay/internal/config"
	"signal-relay/internal/database"
	"signal-relay/internal/repositories/postgres"
	"signal-relay/internal/services"
	"signal-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	gin.SetMode(gin.ReleaseMode)
	slog.Info("Starting signal relay")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Redis backs presence and rate limiting; the relay runs without it.
	var redisService *services.RedisService
	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, presence and rate limiting disabled", "error", err)
	} else {
		defer redisClient.Close()
		redisService = services.NewRedisService(redisClient)
		// Presence from a previous process is stale: no connection survived.
		if err := redisService.ClearPresence(ctx); err != nil {
			slog.Warn("Failed to clear stale presence", "error", err)
		}
	}

	var publisher services.MessagePublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.InitKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			slog.Error("Failed to connect to Kafka", "brokers", cfg.Kafka.Brokers, "error", err)
			os.Exit(1)
		}
		messagePublisher := kafka.NewMessagePublisher(producer, cfg.Kafka.Topic)
		defer messagePublisher.Close()
		publisher = messagePublisher
		slog.Info("Publishing message events", "topic", cfg.Kafka.Topic)
	}

	var uploader handlers.ObjectUploader
	if cfg.Storage.Enabled() {
		minioClient, err := storage.NewMinIOClient(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey,
			cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
		if err != nil {
			slog.Error("Failed to connect to MinIO", "endpoint", cfg.Storage.Endpoint, "error", err)
			os.Exit(1)
		}
		uploader = minioClient
	} else {
		slog.Warn("MINIO_ENDPOINT not set, uploads disabled")
	}

	userRepo := postgres.NewUserRepository(db)
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.ExpirationTime)
	chatService := services.NewChatService(
		postgres.NewChatRepository(db),
		postgres.NewMessageRepository(db),
		userRepo,
		publisher,
	)

	metrics := websocket.NewConnectionMetrics()
	hub := websocket.NewHub(metrics, cfg.WebSocket.SendTimeout)
	relayOpts := []websocket.RelayOption{websocket.WithMetrics(metrics)}
	var limiter middleware.RateLimiter
	var presence handlers.OnlineLister
	if redisService != nil {
		relayOpts = append(relayOpts, websocket.WithPresence(redisService))
		limiter = redisService
		presence = redisService
	}
	relay := websocket.NewRelay(hub, chatService, relayOpts...)
	wsHandler := websocket.NewHandler(hub, relay, websocket.HandlerOptions{
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		SendBuffer:     cfg.WebSocket.SendBufferSize,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	})

	router := routes.NewRouter(routes.Dependencies{
		Auth:           handlers.NewAuthHandler(userService),
		Users:          handlers.NewUserHandler(userService),
		Presence:       handlers.NewPresenceHandler(presence, relay),
		Chats:          handlers.NewChatHandler(chatService),
		Upload:         handlers.NewUploadHandler(uploader, cfg.Storage.MaxUploadSize),
		WS:             handlers.NewWSHandler(hub, relay, wsHandler, cfg.JWT.Secret),
		AuthMW:         middleware.NewAuthMiddleware(cfg.JWT.Secret),
		LimitMW:        middleware.NewRateLimitMiddleware(limiter),
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown does not touch hijacked websocket connections; close them
	// explicitly so each runs its disconnect cleanup.
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := hub.CloseAll(shutdownCtx); err != nil {
		slog.Error("Websocket cleanup incomplete", "error", err)
	}

	slog.Info("Server stopped")
}
