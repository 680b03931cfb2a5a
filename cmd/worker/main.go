package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/bookshop-order-service/internal/app/api"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	platformobservability "github.com/Apurer/bookshop-order-service/internal/platform/observability"
	platformpostgres "github.com/Apurer/bookshop-order-service/internal/platform/postgres"
	orderactivities "github.com/Apurer/bookshop-order-service/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/bookshop-order-service/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "bookshop-order-worker"
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	// Orders created here are read back by the API, so an in-memory store is not an option.
	db, cleanupDB := platformpostgres.ConnectOptional(ctx, cfg.PostgresDSN, logger)
	defer cleanupDB()
	if db == nil {
		logger.Error("worker requires POSTGRES_DSN")
		os.Exit(1)
	}
	repo, err := api.BuildOrderStore(db, logger)
	if err != nil {
		logger.Error("failed to prepare order store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	catalog, err := api.BuildCatalog(cfg, instruments)
	if err != nil {
		logger.Error("failed to configure catalog lookup", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var notifier ports.Service
	if cfg.KafkaEnabled() {
		publisher, closeWriter := api.BuildKafkaPublisher(ctx, cfg, logger)
		defer closeWriter()
		notifier = api.NewOrderService(repo, catalog, publisher, instruments)
	} else {
		logger.Warn("KAFKA_BROKERS not set, acceptance notifications are skipped by the worker")
	}
	submitter := api.NewOrderService(repo, catalog, nil, instruments)
	orderActs := orderactivities.NewActivities(submitter, notifier)

	temporalClient, err := api.DialTemporal(cfg, instruments, "temporal-worker")
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.OrderSubmissionTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.OrderSubmissionWorkflow, workflow.RegisterOptions{Name: orderworkflows.OrderSubmissionWorkflowName})
	w.RegisterWorkflowWithOptions(orderworkflows.AcceptedNotificationWorkflow, workflow.RegisterOptions{Name: orderworkflows.AcceptedNotificationWorkflowName})
	w.RegisterActivityWithOptions(orderActs.SubmitOrder, activity.RegisterOptions{Name: orderactivities.SubmitOrderActivityName})
	w.RegisterActivityWithOptions(orderActs.PublishOrderAccepted, activity.RegisterOptions{Name: orderactivities.PublishOrderAcceptedActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.OrderSubmissionTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
