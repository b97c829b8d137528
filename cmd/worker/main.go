package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/database"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/queue"
)

// The worker persists session events published by API instances to the
// session event history.
func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewSessionEventRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatalf("Failed to create session event schema: %v", err)
	}

	// Initialize queue
	consumer, err := queue.NewConsumer(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer consumer.Close()

	logger.Infof("Worker started, consuming %s", cfg.Queue.EventQueue)
	if err := consumer.Consume(ctx, repo); err != nil {
		logger.ErrorWithErr("Failed to consume session events", err)
		return
	}

	logger.Info("Worker stopped")
}
