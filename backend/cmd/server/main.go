// ============================================================================
// backend/cmd/server/main.go
// Entry point for the Class Record server (HTTP API + gRPC health)
// ============================================================================

package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"classrecord/backend/internal/gateway"
	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/health"
	"classrecord/backend/internal/record"
	"classrecord/backend/internal/session"
	"classrecord/backend/internal/shared"
	"classrecord/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Load and validate configuration
	config, err := shared.LoadConfig("classrecord")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if shared.IsDevelopment(config) {
		shared.PrintConfig(config)
	}

	logger, err := shared.NewLogger(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// 1. Grading templates
	templates, err := grading.LoadTemplates(config.TemplatesFile)
	if err != nil {
		logger.Fatal("Failed to load grading templates", zap.Error(err))
	}
	for _, t := range templates.All() {
		logger.Info("Grading template loaded", zap.String("name", t.Name), zap.String("collection", t.Collection))
	}

	// 2. Record store
	var (
		recordStore store.RecordStore
		mongoClient *mongo.Client
	)
	switch config.Store.Driver {
	case "memory":
		logger.Warn("Using in-memory record store; data is lost on restart")
		recordStore = store.NewMemoryStore()
	default:
		client, db, err := shared.ConnectMongoDB(&config.MongoDB, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		mongoClient = client
		recordStore = store.NewMongoStore(db, config.Store.Timeout, logger)
	}
	defer func() {
		if err := shared.DisconnectMongoDB(mongoClient, logger); err != nil {
			logger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	// 3. Session cache
	var cache session.Cache
	switch config.Session.Driver {
	case "redis":
		rc, err := session.NewRedisCache(&config.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cache = rc
	default:
		cache = session.NewMemoryCache()
	}
	defer cache.Close()
	sessions := session.NewManager(cache, config.Session.Secret, config.Session.TTL)

	// 4. Service and HTTP surface
	records := record.NewService(recordStore, templates, sessions, logger)
	router := gateway.SetupRoutes(gateway.Dependencies{
		Records:    records,
		Logger:     logger,
		CORS:       config.CORS,
		PrefillTTL: config.Session.PrefillTTL,
	})

	// No WriteTimeout: live table streams are long-lived. Other routes are
	// bounded by the router's Timeout middleware. Shutdown cancels the base
	// context so open streams end instead of holding the drain.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	server := &http.Server{
		Addr:        ":" + config.HTTPPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	go func() {
		logger.Info("HTTP server listening", zap.String("port", config.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// 5. gRPC health
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()

	healthServer := health.NewServer(records, config.Store.HealthInterval, logger)
	listener, err := net.Listen("tcp", ":"+config.GRPCPort)
	if err != nil {
		logger.Fatal("Failed to listen", zap.String("port", config.GRPCPort), zap.Error(err))
	}
	go func() {
		logger.Info("gRPC health server listening", zap.String("port", config.GRPCPort))
		if err := healthServer.Serve(listener); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	go healthServer.Monitor(monitorCtx)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Class Record server...")
	stopMonitor()
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("Class Record server stopped")
}
