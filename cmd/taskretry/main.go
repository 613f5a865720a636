package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/tundeajayi/storefront-backend/internal/deadletter"
	"github.com/tundeajayi/storefront-backend/internal/tasks"
	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

// taskretry resubmits dead-lettered tasks back onto the queue, either one
// record by its originating task id or every record not yet replayed.
func main() {
	logg := logger.New(logger.Options{ServiceName: "taskretry"})

	_ = godotenv.Load()

	taskIDFlag := flag.String("task-id", "", "replay the failed task with this originating task id")
	allFlag := flag.Bool("all", false, "replay every failed task not yet retried")
	flag.Parse()

	if (*taskIDFlag != "") == *allFlag {
		fmt.Fprintln(os.Stderr, "exactly one of --task-id or --all is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "taskretry",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	producer, err := tasks.NewProducer(redisClient, cfg.Tasks.QueueKey)
	if err != nil {
		logg.Error(ctx, "failed to create task producer", err)
		os.Exit(1)
	}

	replayer, err := deadletter.NewReplayer(deadletter.NewRepository(dbClient.DB()), producer, logg)
	if err != nil {
		logg.Error(ctx, "failed to create replayer", err)
		os.Exit(1)
	}

	if *allFlag {
		count, err := replayer.ReplayAll(ctx)
		if err != nil {
			logg.Error(ctx, "replay all failed", err)
			os.Exit(1)
		}
		fmt.Printf("replayed %d failed task(s)\n", count)
		return
	}

	taskID, err := uuid.Parse(*taskIDFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --task-id: %v\n", err)
		os.Exit(2)
	}

	if err := replayer.ReplayByTaskID(ctx, taskID); err != nil {
		logg.Error(ctx, "replay failed", err)
		os.Exit(1)
	}
	fmt.Printf("replayed task %s\n", taskID)
}
