package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const (
	notificationWorkers = 4
	notificationBuffer  = 256
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	required := map[string]handlers.Pinger{}
	optional := map[string]handlers.Pinger{}

	var repos repository.Set
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresSet(pg.PoolHandle(), logger)
		required["postgres"] = pg
	} else {
		logger.Warn("using in-memory storage; data is lost on restart")
		repos = memory.NewStore().Repositories()
	}

	var limiterStorage fiber.Storage
	if cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		optional["redis"] = redis
		if redis.Available() {
			limiterStorage = persistence.NewRedisStorage(redis.Client, cfg.RateLimit.RedisKeyPrefix)
		} else {
			logger.Warn("rate limiter falls back to in-memory counters")
		}
	}

	metrics := observability.NewMetrics()
	notifier := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), logger, notificationWorkers, notificationBuffer)
	services := service.NewServices(*cfg, repos, service.Options{
		Dispatcher: notifier,
		Metrics:    metrics,
		Logger:     logger,
	})
	worker.StartNotificationWorker(ctx, notifier, services.Notifications)

	app := httptransport.NewServer(httptransport.ServerDependencies{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		Services:       services,
		LimiterStorage: limiterStorage,
		Required:       required,
		Optional:       optional,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("helpdesk api started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("env", cfg.App.Env),
		zap.Bool("postgres", pg.Enabled()),
		zap.Bool("redis_limiter", limiterStorage != nil))

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifier.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
