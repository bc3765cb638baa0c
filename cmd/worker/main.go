package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dripmail/internal/config"
	"dripmail/internal/infra/postgresql"
	"dripmail/internal/infra/postgresql/migrations"
	infraredis "dripmail/internal/infra/redis"
	"dripmail/internal/observability"
	"dripmail/internal/provider"
	"dripmail/internal/queue"
	"dripmail/internal/repository"
	"dripmail/internal/service"
	"dripmail/internal/template"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
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

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	publisher := queue.NewRabbitMQPublisher(rmq, logger)
	defer publisher.Close()
	consumer := queue.NewRabbitMQConsumer(rmq, logger)
	defer consumer.Close()

	emailProvider, err := provider.NewResendProvider(cfg.ResendAPIKey, cfg.ResendFromEmail, cfg.ProviderTimeout())
	if err != nil {
		logger.Fatal("resend provider init failed", zap.Error(err))
	}

	events := repository.NewGormEventRepo(db)
	templates := repository.NewGormTemplateRepo(db)
	rules := repository.NewGormRuleRepo(db)
	sends := repository.NewGormSendRepo(db)
	audits := repository.NewGormAuditRepo(db)

	registry, err := template.NewRegistry(templates)
	if err != nil {
		logger.Fatal("template registry init failed", zap.Error(err))
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	// Lock outlives a pass that runs long; a crashed holder frees it on TTL.
	lock, err := infraredis.NewSchedulerLock(rdb, 2*cfg.SchedulerInterval())
	if err != nil {
		logger.Fatal("scheduler lock init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	scheduler, err := service.NewScheduler(
		events, rules, templates, sends, audits,
		publisher, lock,
		service.SchedulerConfig{
			Interval:    cfg.SchedulerInterval(),
			Lookback:    cfg.SchedulerLookback(),
			ScanLimit:   cfg.SchedulerScanLimit,
			MaxAttempts: cfg.MaxAttempts,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("scheduler init failed", zap.Error(err))
	}
	scheduler.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(
		sends, templates, audits,
		registry, consumer, emailProvider, rateLimiter,
		service.DispatcherConfig{
			Concurrency:     cfg.DispatcherConcurrency,
			ProviderTimeout: cfg.ProviderTimeout(),
			RetryBaseDelay:  cfg.RetryBaseDelay(),
			RetryMaxDelay:   cfg.RetryMaxDelay(),
		},
		logger,
	)
	if err != nil {
		logger.Fatal("dispatcher init failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	requeue, err := service.NewRequeueScanner(sends, publisher, 0, 0, logger)
	if err != nil {
		logger.Fatal("requeue scanner init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Start(gctx)
	})
	g.Go(func() error {
		return dispatcher.Start(gctx)
	})
	g.Go(func() error {
		return requeue.Start(gctx)
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info("dripmail worker started",
		zap.Int("concurrency", cfg.DispatcherConcurrency),
		zap.Duration("scheduler_interval", cfg.SchedulerInterval()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker exited", zap.Error(err))
	}
	logger.Info("worker stopped")
}
