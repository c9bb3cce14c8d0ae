package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/loanrecovery/backend/internal/cache"
	"github.com/loanrecovery/backend/internal/config"
	"github.com/loanrecovery/backend/internal/db"
	"github.com/loanrecovery/backend/internal/jobs"
	"github.com/loanrecovery/backend/internal/notify"
	"github.com/loanrecovery/backend/internal/observability"
	postgresrepo "github.com/loanrecovery/backend/internal/repository/postgres"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel, "worker")
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := cache.NewRedisClient(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	sender, err := notify.NewSenderFromConfig(cfg, logger)
	if err != nil {
		logger.Error("invalid notify config", "err", err)
		os.Exit(1)
	}

	worker := jobs.NewWorker(
		postgresrepo.NewOutboxRepository(pool).WithLease(cfg.OutboxLease),
		cache.NewDirectory(db.NewUserRepository(pool), rdb, cfg.IdentityCacheTTL, logger),
		sender,
		logger,
	)

	// A slow batch must not overlap with the next tick.
	var running sync.Mutex
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.WorkerSchedule, func() {
		if !running.TryLock() {
			logger.Debug("previous outbox batch still running, skipping tick")
			return
		}
		defer running.Unlock()

		runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer runCancel()
		if err := worker.RunOnce(runCtx, cfg.WorkerBatchSize); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker run failed", "err", err)
		}
	})
	if err != nil {
		logger.Error("invalid WORKER_SCHEDULE", "schedule", cfg.WorkerSchedule, "err", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	logger.Info("worker started", "schedule", cfg.WorkerSchedule, "batch_size", cfg.WorkerBatchSize)

	<-sigCtx.Done()
	<-scheduler.Stop().Done()
	logger.Info("worker stopped")
}
