package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classify-engine/internal/classifier"
	"classify-engine/internal/config"
	"classify-engine/internal/infra/postgresql"
	"classify-engine/internal/infra/postgresql/migrations"
	infraredis "classify-engine/internal/infra/redis"
	"classify-engine/internal/observability"
	"classify-engine/internal/queue"
	"classify-engine/internal/repository"
	"classify-engine/internal/service"
	"classify-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "worker")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	stash, err := infraredis.NewPayloadStash(rdb, time.Duration(cfg.PayloadTTLHours)*time.Hour)
	if err != nil {
		logger.Fatal("payload stash initialization failed", zap.Error(err))
	}

	events, err := infraredis.NewBatchEvents(rdb)
	if err != nil {
		logger.Fatal("batch events initialization failed", zap.Error(err))
	}

	batchRepo := repository.NewGormBatchRepo(db)
	taskRepo := repository.NewGormTaskRepo(db)

	metrics := observability.NewMetrics()

	aggregator, err := service.NewAggregator(batchRepo, taskRepo, events, logger)
	if err != nil {
		logger.Fatal("aggregator initialization failed", zap.Error(err))
	}
	aggregator.SetMetrics(metrics)

	imageClassifier, err := classifier.NewHTTPClassifier(cfg.ClassifierURL)
	if err != nil {
		logger.Fatal("classifier initialization failed", zap.Error(err))
	}

	store, err := storage.NewHTTPStore(cfg.StorageURL)
	if err != nil {
		logger.Fatal("storage initialization failed", zap.Error(err))
	}

	worker, err := service.NewWorkerService(
		taskRepo,
		aggregator,
		consumer,
		imageClassifier,
		store,
		stash,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("classify-engine worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
	)

	if err := worker.Start(ctx); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("worker shut down")
}
