package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/auth"
	"github.com/loanrecovery/backend/internal/config"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/loanrecovery/backend/internal/http/handlers"
	"github.com/loanrecovery/backend/internal/http/middleware"
	"github.com/loanrecovery/backend/internal/version"
	"github.com/loanrecovery/backend/internal/ws"
)

type Dependencies struct {
	Pinger         handlers.Pinger
	CachePinger    handlers.Pinger
	AuthHandler    *handlers.AuthHandler
	LoanHandler    *handlers.LoanHandler
	PaymentHandler *handlers.PaymentHandler
	AdminHandler   *handlers.AdminHandler
	WSHandler      *ws.Handler
	JWTManager     *auth.JWTManager
	Sessions       middleware.SessionChecker
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
	r.Use(middleware.RequestBodyLimit(cfg.RequestBodyLimit))

	checks := []handlers.ReadinessCheck{{Name: "database", Pinger: deps.Pinger}}
	if deps.CachePinger != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "cache", Pinger: deps.CachePinger, Optional: true})
	}
	health := handlers.NewHealthHandler(cfg.Env, checks...)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, cfg.GatewayMode)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.JWTManager != nil {
		requireAuth := middleware.RequireAuth(deps.JWTManager, deps.Sessions, cfg.AuthEnableBearer)
		bankOnly := middleware.RequireRole(identity.RoleBank)
		agentOnly := middleware.RequireRole(identity.RoleAgent)
		anyRole := middleware.RequireRole(identity.RoleBank, identity.RoleAgent)

		if deps.AuthHandler != nil {
			authGroup := r.Group("/v1/auth")
			authGroup.POST("/register", deps.AuthHandler.Register)
			authGroup.POST("/login", deps.AuthHandler.Login)

			protected := authGroup.Group("")
			protected.Use(requireAuth)
			protected.POST("/logout", deps.AuthHandler.Logout)
			protected.GET("/me", deps.AuthHandler.Me)
		}

		if deps.LoanHandler != nil {
			loans := r.Group("/v1")
			loans.Use(requireAuth)
			loans.POST("/loans", bankOnly, deps.LoanHandler.CreateLoan)
			loans.GET("/loans", anyRole, deps.LoanHandler.ListLoans)
			loans.GET("/loans/:loanId", anyRole, deps.LoanHandler.GetLoan)
			loans.PUT("/loans/:loanId/assign", bankOnly, deps.LoanHandler.AssignLoan)
			loans.GET("/loans/:loanId/ledger", bankOnly, deps.LoanHandler.VerifyLedger)
			loans.GET("/agents", bankOnly, deps.LoanHandler.ListAgents)
		}

		if deps.PaymentHandler != nil {
			payments := r.Group("/v1/payments")
			payments.Use(requireAuth)
			payments.POST("", agentOnly, deps.PaymentHandler.RecordPayment)
			payments.POST("/upi/process", agentOnly, deps.PaymentHandler.ProcessUPI)
			payments.GET("/loan/:loanId", anyRole, deps.PaymentHandler.ListLoanPayments)
			payments.GET("/stats", agentOnly, deps.PaymentHandler.Stats)
		}

		if deps.AdminHandler != nil {
			adminGroup := r.Group("/v1/admin")
			adminGroup.Use(requireAuth, bankOnly)
			adminGroup.GET("/health", deps.AdminHandler.DatabaseHealth)
			adminGroup.GET("/stats", deps.AdminHandler.DatabaseStats)
			adminGroup.GET("/loans/export", deps.AdminHandler.ExportLoanBook)
			adminGroup.GET("/audit", deps.AdminHandler.AuditTrail)
		}

		if deps.WSHandler != nil {
			r.GET("/v1/ws", requireAuth, deps.WSHandler.HandleWebSocket)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
