package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/queue"
	"namaste-icd-mapper/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Feedback store shared with the API server
	var store services.FeedbackStore
	switch cfg.FeedbackBackend {
	case "mongo":
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		store = services.NewMongoFeedbackStore(mongoClient.Database(cfg.DBName))
	default:
		store = services.NewFileFeedbackStore(cfg.FeedbackDataPath)
	}

	// Redis options for Asynq
	redisOpt, err := queue.RedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueDefault: 3,
				queue.QueueLow:     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(store)

	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting Asynq worker",
		"concurrency", cfg.WorkerConcurrency,
		"feedback_backend", store.Backend(),
		"export_dir", cfg.ExportDir)

	// Run handles SIGINT/SIGTERM and drains in-flight tasks
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
