package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"dripmail/internal/config"
	"dripmail/internal/handler"
	"dripmail/internal/infra/postgresql"
	"dripmail/internal/infra/postgresql/migrations"
	infraredis "dripmail/internal/infra/redis"
	"dripmail/internal/observability"
	"dripmail/internal/repository"
	"dripmail/internal/service"
	"dripmail/internal/transport"
)

const shutdownTimeout = 10 * time.Second

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

	events := repository.NewGormEventRepo(db)
	templates := repository.NewGormTemplateRepo(db)
	rules := repository.NewGormRuleRepo(db)
	sends := repository.NewGormSendRepo(db)
	audits := repository.NewGormAuditRepo(db)

	eventService, err := service.NewEventService(events, logger)
	if err != nil {
		logger.Fatal("event service init failed", zap.Error(err))
	}
	adminService, err := service.NewAdminService(templates, rules, logger)
	if err != nil {
		logger.Fatal("admin service init failed", zap.Error(err))
	}
	sendQueryService, err := service.NewSendQueryService(sends, audits, logger)
	if err != nil {
		logger.Fatal("send query service init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      "dripmail-api",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterEventRoutes(app, eventService); err != nil {
		logger.Fatal("event routes init failed", zap.Error(err))
	}
	if err := handler.RegisterTemplateRoutes(app, adminService); err != nil {
		logger.Fatal("template routes init failed", zap.Error(err))
	}
	if err := handler.RegisterRuleRoutes(app, adminService); err != nil {
		logger.Fatal("rule routes init failed", zap.Error(err))
	}
	if err := handler.RegisterSendRoutes(app, sendQueryService); err != nil {
		logger.Fatal("send routes init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down api")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("dripmail api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("api server exited", zap.Error(err))
	}
}
