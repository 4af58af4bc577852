package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bistro/auth/internal/cache"
	"bistro/auth/internal/config"
	"bistro/auth/internal/database"
	"bistro/auth/internal/handlers"
	"bistro/auth/internal/jobs"
	"bistro/auth/internal/log"
	"bistro/auth/internal/ratelimit"
	"bistro/auth/internal/server"
	"bistro/auth/internal/service"
)

const sweepTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}

	redisClient := connectQueue(ctx, cfg, logger)

	limiter := ratelimit.NewLimiter(store.RateLimits(), cfg.RateLimit, cfg.Database.QueryTimeout, logger)
	authService := service.NewAuthService(store, limiter, cfg, logger)
	sessionService := service.NewSessionService(store, cfg.Database.QueryTimeout, logger)
	reaper := service.NewReaper(store, cfg.Reaper.Retention, cfg.Database.QueryTimeout, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, store, redisClient, authService, sessionService, reaper)
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	scheduler := jobs.NewScheduler(cfg.Reaper, reaper, redisClient, cfg.Redis.Stream, sweepTimeout, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		scheduler.Stop(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("http server failed")
	}

	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("database close error")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}

// connectQueue returns nil when no queue is configured. Queue mode cannot
// run without it.
func connectQueue(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) *redis.Client {
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	switch {
	case err == nil:
		return client
	case cfg.Reaper.Mode == config.ReaperModeQueue:
		logger.Fatal().Err(err).Msg("failed to connect redis")
	case !errors.Is(err, cache.ErrNotConfigured):
		logger.Warn().Err(err).Msg("redis unavailable, continuing without queue")
	}
	return nil
}
