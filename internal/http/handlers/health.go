package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck is one dependency probed by /ready. A failing optional check
// degrades the report without taking the instance out of rotation.
type ReadinessCheck struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

type HealthHandler struct {
	env       string
	checks    []ReadinessCheck
	timeout   time.Duration
	startedAt time.Time
}

func NewHealthHandler(env string, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{env: env, checks: checks, timeout: 2 * time.Second, startedAt: time.Now()}
}

// Health is liveness only and never touches a dependency.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "loan-recovery-backend",
		"environment":    h.env,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	results := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if check.Pinger != nil && check.Pinger.Ping(ctx) == nil {
			results[check.Name] = "ok"
			continue
		}
		results[check.Name] = "error"
		if !check.Optional {
			status, code = "not_ready", http.StatusServiceUnavailable
		} else if code == http.StatusOK {
			status = "degraded"
		}
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}
