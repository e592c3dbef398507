package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/showtixhq/showtix-backend/api/routes"
	"github.com/showtixhq/showtix-backend/internal/catalog"
	"github.com/showtixhq/showtix-backend/internal/inventory"
	"github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/internal/payments"
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

const (
	notifyPath      = "/api/v1/payments/wechat/notify"
	notifyScope     = "wechat-notify"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		ledger,
		issuer,
		refund.NewPolicy(cfg.Order.RefundCutoff),
		outboxSvc,
		orderMetrics,
		logg,
		cfg.Order.CancellationWindow,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	gateway, err := payments.NewGateway(cfg.WeChat, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}
	guard, err := payments.NewIdempotencyGuard(redisClient, cfg.WeChat.NotifyTTL, notifyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create notify guard", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(
		ordersSvc,
		payments.NewRepository(dbClient.DB()),
		gateway,
		guard,
		orderMetrics,
		logg,
		strings.TrimRight(cfg.App.BaseURL, "/")+notifyPath,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Catalog:  catalogSvc,
			Orders:   ordersSvc,
			Payments: paymentsSvc,
			Gatherer: prometheus.DefaultGatherer,
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
