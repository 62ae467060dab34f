package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/db"
	"github.com/cashtoken-io/backend/internal/events"
	"github.com/cashtoken-io/backend/internal/notify"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/cashtoken-io/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.DBPoolSize, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// In cluster mode the expiry notifications go through the shared bus so
	// observers attached to API nodes still hear about swept tokens.
	notifier := notify.New(log)
	if cfg.UseRedis {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		bus := events.NewRedisBus(rdb, log)
		defer bus.Close()
		notifier = notify.NewClustered(bus, log)
	}

	// Repos
	tokenRepo := repositories.NewTokenRepo(pool)
	deviceRepo := repositories.NewDeviceRepo(pool)
	clearingRepo := repositories.NewClearingRepo(pool)
	paramRepo := repositories.NewParamRepo(pool)

	// Services
	clearingService := services.NewClearingService(clearingRepo, paramRepo, notifier, log)
	tokenService := services.NewTokenService(tokenRepo, deviceRepo, clearingService, notifier, cfg, log)

	log.Info("worker started")

	// Run jobs on tickers
	expiryTicker := time.NewTicker(30 * time.Second)
	retentionTicker := time.NewTicker(24 * time.Hour)
	defer expiryTicker.Stop()
	defer retentionTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			runExpirySweep(ctx, tokenService, log)
		case <-retentionTicker.C:
			runRetentionCleanup(ctx, tokenRepo, clearingRepo, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runExpirySweep(ctx context.Context, tokens *services.TokenService, log *zap.Logger) {
	n, err := tokens.ExpireOverdue(ctx)
	if err != nil {
		log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired overdue tokens", zap.Int("count", n))
	}
}

func runRetentionCleanup(ctx context.Context, tokenRepo *repositories.TokenRepo, clearingRepo *repositories.ClearingRepo, cfg *config.Config, log *zap.Logger) {
	if cfg.MaxHistoryDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.MaxHistoryDays)

	// Clearing rows reference tokens, so they go first.
	cleared, err := clearingRepo.CleanupBefore(ctx, cutoff)
	if err != nil {
		log.Error("clearing cleanup failed", zap.Error(err))
		return
	}
	swept, err := tokenRepo.CleanupBefore(ctx, cutoff)
	if err != nil {
		log.Error("token cleanup failed", zap.Error(err))
		return
	}
	if cleared > 0 || swept > 0 {
		log.Info("retention cleanup done",
			zap.Int64("clearing_rows", cleared),
			zap.Int64("tokens", swept),
			zap.Time("cutoff", cutoff))
	}
}
