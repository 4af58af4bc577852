package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bistro/auth/internal/cache"
	"bistro/auth/internal/config"
	"bistro/auth/internal/database"
	"bistro/auth/internal/log"
	"bistro/auth/internal/queue"
	"bistro/auth/internal/service"
	"bistro/auth/internal/tasks"
)

const sweepTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	reaper := service.NewReaper(store, cfg.Reaper.Retention, cfg.Database.QueryTimeout, logger)
	processor := tasks.NewProcessor(reaper, sweepTimeout, logger)
	consumer := queue.NewConsumer(client, cfg.Redis, cfg.Queues.ClaimInterval, logger, processor)

	logger.Info().Str("stream", cfg.Redis.Stream).Str("group", cfg.Redis.Group).Msg("worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("worker exited cleanly")
}
