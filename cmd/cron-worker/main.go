package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/showtixhq/showtix-backend/internal/cron"
	"github.com/showtixhq/showtix-backend/internal/inventory"
	"github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/internal/refund"
	"github.com/showtixhq/showtix-backend/internal/tickets"
	"github.com/showtixhq/showtix-backend/pkg/config"
	"github.com/showtixhq/showtix-backend/pkg/db"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/metrics"
	"github.com/showtixhq/showtix-backend/pkg/migrate"
	"github.com/showtixhq/showtix-backend/pkg/outbox"
	"github.com/showtixhq/showtix-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	ledger, err := inventory.NewLedger(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	issuer, err := tickets.NewIssuer(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ticket issuer", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		ledger,
		issuer,
		refund.NewPolicy(cfg.Order.RefundCutoff),
		outbox.NewService(outboxRepo, logg),
		orderMetrics,
		logg,
		cfg.Order.CancellationWindow,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger: logg,
		Orders: ordersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order expiry job", err)
		os.Exit(1)
	}

	publishJob, err := cron.NewOutboxPublishJob(cron.OutboxPublishJobParams{
		Logger:    logg,
		Repo:      outboxRepo,
		Publisher: redisClient,
		Config:    cfg.Outbox,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publish job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	registry.Register(expiryJob)
	registry.Register(publishJob)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.TickInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
