package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tundeajayi/storefront-backend/api/routes"
	"github.com/tundeajayi/storefront-backend/internal/deadletter"
	"github.com/tundeajayi/storefront-backend/internal/locks"
	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/internal/products"
	"github.com/tundeajayi/storefront-backend/internal/reservation"
	"github.com/tundeajayi/storefront-backend/internal/tasks"
	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
	"github.com/tundeajayi/storefront-backend/pkg/migrate"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
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

	lockManager, err := locks.NewManager(redisClient, cfg.Locks, logg, orderMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}

	producer, err := tasks.NewProducer(redisClient, cfg.Tasks.QueueKey)
	if err != nil {
		logg.Error(context.Background(), "failed to create task producer", err)
		os.Exit(1)
	}

	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(productRepo, redisClient, cfg.Catalog, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orderRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	engine, err := reservation.NewEngine(dbClient, lockManager, productRepo, orderRepo, producer, logg, orderMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation engine", err)
		os.Exit(1)
	}

	deadLetterRepo := deadletter.NewRepository(dbClient.DB())
	replayer, err := deadletter.NewReplayer(deadLetterRepo, producer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create replayer", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			productService,
			orderService,
			engine,
			producer,
			deadLetterRepo,
			replayer,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
