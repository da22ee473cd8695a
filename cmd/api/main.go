package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"classify-engine/internal/config"
	"classify-engine/internal/handler"
	"classify-engine/internal/infra/postgresql"
	"classify-engine/internal/infra/postgresql/migrations"
	infraredis "classify-engine/internal/infra/redis"
	"classify-engine/internal/notifier"
	"classify-engine/internal/observability"
	"classify-engine/internal/queue"
	"classify-engine/internal/repository"
	"classify-engine/internal/service"
	"classify-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "api")
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

	publisher := queue.NewRabbitMQPublisher(rabbit)

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

	uploadService, err := service.NewUploadService(batchRepo, taskRepo, aggregator, stash, publisher, logger)
	if err != nil {
		logger.Fatal("upload service initialization failed", zap.Error(err))
	}
	uploadService.SetMetrics(metrics)

	gitlabNotifier, err := notifier.NewGitLabNotifier(cfg.GitLabBaseURL, cfg.GitLabToken)
	if err != nil {
		logger.Fatal("gitlab notifier initialization failed", zap.Error(err))
	}

	watcher, err := service.NewCompletionWatcher(
		batchRepo,
		taskRepo,
		gitlabNotifier,
		events,
		time.Duration(cfg.WatchPollSeconds)*time.Second,
		time.Duration(cfg.WatchMaxWaitSecond)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("completion watcher initialization failed", zap.Error(err))
	}
	watcher.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "classify-engine-api",
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    100 * 1024 * 1024,
	})

	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)

	if err := handler.RegisterUploadRoutes(app, uploadService); err != nil {
		logger.Fatal("upload routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterWebhookRoutes(app, uploadService, watcher, resty.New(), logger); err != nil {
		logger.Fatal("webhook routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("classify-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(listenAddr(cfg.APIPort)); err != nil {
			logger.Error("api server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down api")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func listenAddr(port int) string {
	if port <= 0 {
		port = 8000
	}
	return fmt.Sprintf(":%d", port)
}
