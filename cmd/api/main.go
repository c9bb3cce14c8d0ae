package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loanrecovery/backend/internal/auth"
	"github.com/loanrecovery/backend/internal/cache"
	"github.com/loanrecovery/backend/internal/config"
	"github.com/loanrecovery/backend/internal/db"
	admindomain "github.com/loanrecovery/backend/internal/domain/admin"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	"github.com/loanrecovery/backend/internal/domain/settlement"
	"github.com/loanrecovery/backend/internal/gateway"
	"github.com/loanrecovery/backend/internal/http/handlers"
	"github.com/loanrecovery/backend/internal/observability"
	postgresrepo "github.com/loanrecovery/backend/internal/repository/postgres"
	"github.com/loanrecovery/backend/internal/server"
	"github.com/loanrecovery/backend/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel, "api")
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

	if cfg.DBAutoMigrate {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "versions", applied)
	}

	rdb := cache.NewRedisClient(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	userRepo := db.NewUserRepository(pool)
	directory := cache.NewDirectory(userRepo, rdb, cfg.IdentityCacheTTL, logger)
	loanRepo := postgresrepo.NewLoanRepository(pool)
	paymentRepo := postgresrepo.NewPaymentRepository(pool)

	charger, err := gateway.NewChargerFromConfig(cfg)
	if err != nil {
		logger.Error("invalid gateway config", "err", err)
		os.Exit(1)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	authService := auth.NewService(userRepo, jwtManager, cfg.JWTAccessTTL)
	loanService := loandomain.NewService(loanRepo, directory, postgresrepo.NewOutboxRepository(pool), logger)
	settlementService := settlement.NewService(loanRepo, paymentRepo, charger, logger).WithChargeTimeout(cfg.GatewayTimeout)
	adminService := admindomain.NewService(
		postgresrepo.NewStatsRepository(pool),
		loanRepo,
		postgresrepo.NewAdminAuditRepository(pool),
		logger,
	)

	hub := ws.NewHub()
	notifier := ws.NewNotifier(postgresrepo.NewWSRepository(pool), hub, logger, cfg.WSPollInterval)
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go func() {
		if err := notifier.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("payment notifier stopped", "err", err)
		}
	}()

	deps := server.Dependencies{
		Pinger:         pool,
		AuthHandler:    handlers.NewAuthHandler(authService, auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}, cfg.JWTAccessTTL),
		LoanHandler:    handlers.NewLoanHandler(loanService, settlementService),
		PaymentHandler: handlers.NewPaymentHandler(settlementService),
		AdminHandler:   handlers.NewAdminHandler(adminService),
		WSHandler:      ws.NewHandler(hub),
		JWTManager:     jwtManager,
		Sessions:       authService,
	}
	if rdb != nil {
		deps.CachePinger = cache.NewPinger(rdb)
	}
	r := server.NewRouter(cfg, logger, deps)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr(), "gateway_mode", cfg.GatewayMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	stopRun()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}
