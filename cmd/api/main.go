package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ojalabs/oja-backend/api/routes"
	"github.com/ojalabs/oja-backend/internal/deliveries"
	"github.com/ojalabs/oja-backend/internal/disputes"
	"github.com/ojalabs/oja-backend/internal/escrow"
	"github.com/ojalabs/oja-backend/internal/orders"
	"github.com/ojalabs/oja-backend/internal/payouts"
	"github.com/ojalabs/oja-backend/internal/wallet"
	"github.com/ojalabs/oja-backend/pkg/config"
	"github.com/ojalabs/oja-backend/pkg/courier"
	"github.com/ojalabs/oja-backend/pkg/db"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/metrics"
	"github.com/ojalabs/oja-backend/pkg/migrate"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/redis"
	"github.com/ojalabs/oja-backend/pkg/storage/gcs"
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

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	courierClient, err := courier.NewClient(context.Background(), cfg.Courier, logg, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap courier client", err)
		os.Exit(1)
	}

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs client", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs client", err)
		}
	}()

	outboxPublisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	walletSvc, err := wallet.NewService(wallet.NewRepository(dbClient.DB()), logg, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	escrowSvc, err := escrow.NewService(
		escrow.NewRepository(dbClient.DB()),
		dbClient,
		outboxPublisher,
		walletSvc,
		logg,
		settlementMetrics,
		cfg.Escrow.PlatformFeePercent,
		cfg.Escrow.AutoReleaseWindow,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create escrow service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxPublisher,
		escrowSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	deliveriesSvc, err := deliveries.NewService(
		deliveries.NewRepository(dbClient.DB()),
		dbClient,
		outboxPublisher,
		courierClient,
		gcsClient,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(
		payouts.NewRepository(dbClient.DB()),
		dbClient,
		outboxPublisher,
		walletSvc,
		logg,
		settlementMetrics,
		cfg.Payout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	disputesSvc, err := disputes.NewService(
		disputes.NewRepository(dbClient.DB()),
		dbClient,
		outboxPublisher,
		escrowSvc,
		logg,
		settlementMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
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
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Courier:    courierClient,
			Metrics:    registry,
			Orders:     ordersSvc,
			Escrow:     escrowSvc,
			Deliveries: deliveriesSvc,
			Payouts:    payoutsSvc,
			Wallet:     walletSvc,
			Disputes:   disputesSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
