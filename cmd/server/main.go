package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/di"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/router"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logConfig.JSON = os.Getenv("LOG_FORMAT") != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting dialogue engine", "version", os.Getenv("APP_VERSION"))

	cfg := config.New()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}
	if err := config.VerifyConnection(db); err != nil {
		log.LogError(err, "Database connection check failed")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(
		&models.Session{},
		&models.AuthenticatedLogin{},
		&models.OTPChallenge{},
		&models.Customer{},
	); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Owner lookups dominate: every inbound message resolves its active
	// session by (channel, owner).
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_channel_owner_status ON sessions(channel, owner, status)").Error; err != nil {
		log.LogError(err, "Failed to create session index", "index", "idx_sessions_channel_owner_status")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_logins_owner_active ON authenticated_logins(owner, is_active)").Error; err != nil {
		log.LogError(err, "Failed to create login index", "index", "idx_logins_owner_active")
	}

	// Initialize dependency injection container
	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r.Engine,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
