package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kairos/fitness-server/internal/api"
	"kairos/fitness-server/internal/config"
	"kairos/fitness-server/internal/logging"
	"kairos/fitness-server/internal/pubsub"
	repoMongo "kairos/fitness-server/internal/repository/mongo"
	"kairos/fitness-server/internal/service"
	"kairos/fitness-server/internal/stream"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger := logging.Logger()
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting Kairos Fitness server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal("Could not load config", zap.Error(err))
	}

	// --- Database Connection ---
	dbClient, err := repoMongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("Could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		logger.Info("Disconnecting MongoDB...")
		if err := repoMongo.DisconnectDB(dbClient); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("Database connection established", zap.String("database", cfg.Database.Name))

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		repoMongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		repoMongo.EnsureAssignmentIndexes(ctx, appDB.Collection("assignments"))
		repoMongo.EnsureNotificationIndexes(ctx, appDB.Collection("notifications"))
		logger.Info("Index creation process completed")
	}()

	// --- Pub/Sub Broker ---
	broker, err := pubsub.NewRedisBroker(cfg.Redis, cfg.Stream.EventBuffer)
	if err != nil {
		logger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer func() { _ = broker.Close() }()
	logger.Info("Pub/sub broker connected", zap.String("addr", cfg.Redis.Addr))

	// --- Initialize Repositories ---
	userRepo := repoMongo.NewMongoUserRepository(appDB)
	assignmentRepo := repoMongo.NewMongoAssignmentRepository(appDB)
	notificationRepo := repoMongo.NewMongoNotificationRepository(appDB)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	assignmentService := service.NewAssignmentService(userRepo, assignmentRepo)
	notificationService := service.NewNotificationService(notificationRepo, broker, logger)

	// --- Delivery Connection Registry ---
	registry := stream.NewRegistry()

	// --- Initialize Gin Engine ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// --- Setup Routes ---
	authHandler := api.NewAuthHandler(authService)
	assignmentHandler := api.NewAssignmentHandler(assignmentService, notificationService, logger)
	notificationHandler := api.NewNotificationHandler(notificationService, logger)
	streamHandler := api.NewStreamHandler(registry, broker, cfg.Stream.KeepAlive, logger)
	api.SetupRoutes(router, cfg.JWT.Secret, authHandler, assignmentHandler, notificationHandler, streamHandler)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the SSE stream endpoint writes for the lifetime
		// of the connection.
		IdleTimeout: 120 * time.Second,
	}

	logger.Info("Server starting", zap.String("address", cfg.Server.Address))

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
