package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/internal/cron"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
	"github.com/angelmondragon/dropship-backend/pkg/migrate"
	"github.com/angelmondragon/dropship-backend/pkg/redis"
)

const lockKeyFormat = "dropship:cron-worker:lock:%s"

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

	cfg.Service.Kind = "cron-worker"

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

	repo := fulfillment.NewRepo(dbClient.DB())
	registry := connectors.NewRegistry(cfg.Suppliers, logg)
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(prometheus.DefaultRegisterer)

	orchestrator, err := fulfillment.NewOrchestrator(fulfillment.OrchestratorParams{
		Store:    repo,
		Registry: registry,
		Leaser:   fulfillment.NewRecordLeaser(redisClient),
		Logger:   logg,
		Metrics:  fulfillmentMetrics,
		Config:   cfg.Fulfillment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orchestrator", err)
		os.Exit(1)
	}

	scheduler, err := fulfillment.NewRetryScheduler(fulfillment.RetrySchedulerParams{
		Store:        repo,
		Orchestrator: orchestrator,
		Logger:       logg,
		Config:       cfg.Fulfillment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry scheduler", err)
		os.Exit(1)
	}

	reconciler, err := fulfillment.NewReconciler(fulfillment.ReconcilerParams{
		Store:    repo,
		Registry: registry,
		Logger:   logg,
		Metrics:  fulfillmentMetrics,
		Config:   cfg.Fulfillment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	syncer, err := catalog.NewSyncer(catalog.SyncerParams{
		Store:    catalog.NewRepo(dbClient.DB()),
		Registry: registry,
		Logger:   logg,
		Config:   cfg.Suppliers,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog syncer", err)
		os.Exit(1)
	}

	retryJob, err := cron.NewFulfillmentRetryJob(cron.FulfillmentRetryJobParams{
		Logger:    logg,
		Scheduler: scheduler,
		Interval:  cfg.Fulfillment.RetryInterval,
		Deadline:  cfg.Fulfillment.TaskDeadline,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry job", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:     logg,
		Reconciler: reconciler,
		Interval:   cfg.Fulfillment.ReconcileInterval,
		Deadline:   cfg.Fulfillment.TaskDeadline,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	productSyncJob, err := cron.NewProductSyncJob(cron.ProductSyncJobParams{
		Logger:   logg,
		Syncer:   syncer,
		Interval: cfg.Fulfillment.ProductSyncInterval,
		Deadline: cfg.Fulfillment.TaskDeadline,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product sync job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(retryJob, reconcileJob, productSyncJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
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
