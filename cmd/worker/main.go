package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tundeajayi/storefront-backend/internal/deadletter"
	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/internal/tasks"
	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
	"github.com/tundeajayi/storefront-backend/pkg/migrate"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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
	taskMetrics := metrics.NewTaskMetrics(prometheus.DefaultRegisterer)

	orderRepo := orders.NewRepository(dbClient.DB())
	webhookRepo := webhooks.NewRepository(dbClient.DB())

	processor, err := webhooks.NewProcessor(dbClient, webhookRepo, orderRepo, logg, orderMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook processor", err)
		os.Exit(1)
	}
	webhookHandler, err := tasks.NewPaymentWebhookHandler(processor)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook handler", err)
		os.Exit(1)
	}

	mailer := &tasks.LogMailer{From: cfg.Email.DefaultFrom, Logger: logg}
	emailHandler, err := tasks.NewConfirmationEmailHandler(orderRepo, tasks.NewEmailLogRepository(dbClient.DB()), mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email handler", err)
		os.Exit(1)
	}

	recorder, err := deadletter.NewRecorder(deadletter.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dead-letter recorder", err)
		os.Exit(1)
	}

	runner, err := tasks.NewRunner(tasks.RunnerParams{
		Queue:    redisClient,
		Handlers: []tasks.Handler{webhookHandler, emailHandler},
		Recorder: recorder,
		Config:   cfg.Tasks,
		Logger:   logg,
		Metrics:  taskMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create task runner", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"workers": cfg.Tasks.Workers,
	})
	logg.Info(ctx, "starting task worker")

	runner.Run(ctx)

	logg.Info(ctx, "task worker shutting down gracefully")
}
