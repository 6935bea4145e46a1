package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"namaste-icd-mapper/internal/ai"
	"namaste-icd-mapper/internal/auth"
	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/nlp"
	"namaste-icd-mapper/internal/queue"
	"namaste-icd-mapper/internal/scheduler"
	"namaste-icd-mapper/internal/telemetry"
	"namaste-icd-mapper/internal/vectorcache"
	"namaste-icd-mapper/internal/watcher"
	"namaste-icd-mapper/routes"
	"namaste-icd-mapper/services"
	"namaste-icd-mapper/utils"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.OTELEnabled {
		shutdown, err := telemetry.InitTracer(cfg.OTELExporterEndpoint, cfg.GinMode)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Embedding model and its persistent vector cache
	var vecCache ai.VectorCache
	if cfg.EmbeddingCachePath != "" {
		store, err := vectorcache.Open(cfg.EmbeddingCachePath)
		if err != nil {
			logger.Error("Failed to open embedding cache", "path", cfg.EmbeddingCachePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		vecCache = store
	}

	embedder, err := ai.NewEmbedderFromConfig(cfg, metrics, vecCache)
	if err != nil {
		logger.Error("Failed to create embedder", "error", err)
		os.Exit(1)
	}

	// Redis is optional: result cache, shared rate limiting and the export queue
	var (
		rdb         *redis.Client
		resultCache services.ResultCache
		taskQueue   queue.Enqueuer
	)
	if cfg.RedisEnabled {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without result cache", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
			resultCache = services.NewRedisResultCache(rdb, cfg.CacheTTL)

			redisOpt, err := queue.RedisOpt(cfg)
			if err != nil {
				logger.Warn("Export queue disabled", "error", err)
			} else {
				asynqClient := asynq.NewClient(redisOpt)
				defer asynqClient.Close()
				taskQueue = asynqClient
			}
		}
	}

	// Feedback store
	var store services.FeedbackStore
	switch cfg.FeedbackBackend {
	case "mongo":
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			logger.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer disconnectMongo(mongoClient)
		store = services.NewMongoFeedbackStore(mongoClient.Database(cfg.DBName))
	default:
		store = services.NewFileFeedbackStore(cfg.FeedbackDataPath)
	}

	mappingService := services.NewMappingService(
		services.MappingOptionsFromConfig(cfg),
		nlp.NewPreprocessor(),
		embedder,
		resultCache,
		metrics,
	)
	defer mappingService.Close()
	feedbackService := services.NewFeedbackService(store, metrics)

	var tokens *auth.TokenManager
	if cfg.AdminTokenSecret != "" {
		tokens, err = auth.NewTokenManager(cfg.AdminTokenSecret, cfg.AdminTokenTTL)
		if err != nil {
			logger.Error("Invalid admin token settings", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("ADMIN_TOKEN_SECRET not set, admin routes are unauthenticated")
	}

	router := routes.NewRouter(cfg, routes.Dependencies{
		Mapping:  mappingService,
		Feedback: feedbackService,
		Redis:    rdb,
		Queue:    taskQueue,
		Tokens:   tokens,
		Metrics:  metrics,
	})

	// Dataset reload triggers; both are no-ops until the service is ready
	if cfg.DatasetWatch {
		w, err := watcher.NewDatasetWatcher(mappingService.DatasetPaths(), watcher.DefaultDebounce, func() {
			ctx, cancel := utils.WithLongTimeout(context.Background())
			defer cancel()
			if _, err := mappingService.Reload(ctx, "watch"); err != nil {
				logger.Warn("Watch-triggered reload skipped", "error", err)
			}
		})
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			logger.Error("Failed to start dataset watcher", "error", err)
			os.Exit(1)
		}
		defer w.Stop()
	}

	if cfg.DatasetReloadCron != "" {
		sched := scheduler.NewScheduler()
		if err := sched.ScheduleDatasetPoll(cfg.DatasetReloadCron, mappingService); err != nil {
			logger.Error("Invalid DATASET_RELOAD_CRON", "value", cfg.DatasetReloadCron, "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "api_prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Models and datasets load in the background; requests get 503 meanwhile
	initErr := make(chan error, 1)
	go func() {
		ctx, cancel := utils.WithLongTimeout(context.Background())
		defer cancel()
		initErr <- mappingService.Initialize(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
wait:
	for {
		select {
		case err := <-initErr:
			if err != nil {
				logger.Error("Startup failed", "error", err)
				exitCode = 1
				break wait
			}
		case err := <-serverErr:
			logger.Error("Failed to start server", "error", err)
			exitCode = 1
			break wait
		case <-quit:
			break wait
		}
	}
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		exitCode = 1
	}

	logger.Info("Server exited")
	if exitCode != 0 {
		// deferred cleanups are skipped by os.Exit
		mappingService.Close()
		os.Exit(exitCode)
	}
}

func disconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("MongoDB disconnect failed", "error", err)
	}
}
