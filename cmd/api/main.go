package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dropship-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/dropship-backend/api/controllers/webhooks"
	"github.com/angelmondragon/dropship-backend/api/routes"
	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/internal/events"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
	"github.com/angelmondragon/dropship-backend/pkg/migrate"
	"github.com/angelmondragon/dropship-backend/pkg/pubsub"
	"github.com/angelmondragon/dropship-backend/pkg/redis"
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

	cfg.Service.Kind = "api"

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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
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

	ordersController, err := controllers.NewOrdersController(repo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders controller", err)
		os.Exit(1)
	}

	adminController, err := controllers.NewAdminFulfillmentsController(controllers.AdminFulfillmentsControllerParams{
		Store:      repo,
		Processor:  orchestrator,
		Sweeper:    scheduler,
		Reconciler: reconciler,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin controller", err)
		os.Exit(1)
	}

	paymentsController, err := webhookcontrollers.NewPaymentsController(webhookcontrollers.PaymentsControllerParams{
		Store:     repo,
		Publisher: events.NewOrderPublisher(pubsubClient.OrdersPublisher()),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments controller", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"db":     dbClient,
			"redis":  redisClient,
			"pubsub": pubsubClient,
		},
		Orders:   ordersController,
		Admin:    adminController,
		Payments: paymentsController,
	})

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
		Addr:    addr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
