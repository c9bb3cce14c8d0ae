package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/loanrecovery/backend/internal/http/middleware"
	"github.com/loanrecovery/backend/internal/money"
	"github.com/shopspring/decimal"
)

// writeError maps domain error kinds onto status codes. Anything unclassified
// is logged and reported as internal_error.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidRole):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrGateway):
		status = http.StatusPaymentRequired
	case errors.Is(err, errs.ErrOutcomeUnknown):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(status, gin.H{"error": errs.Code(err, "internal_error")})
}

func bankFrom(c *gin.Context) (identity.Bank, bool) {
	viewer, ok := middleware.ViewerFrom(c)
	if !ok {
		return identity.Bank{}, false
	}
	bank, ok := viewer.(identity.Bank)
	return bank, ok
}

func agentFrom(c *gin.Context) (identity.Agent, bool) {
	viewer, ok := middleware.ViewerFrom(c)
	if !ok {
		return identity.Agent{}, false
	}
	agent, ok := viewer.(identity.Agent)
	return agent, ok
}

func viewerOrForbidden(c *gin.Context) (identity.Viewer, bool) {
	viewer, ok := middleware.ViewerFrom(c)
	if !ok {
		forbidden(c)
		return nil, false
	}
	return viewer, true
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

// amountToMinor converts a request amount, reporting failures as validation
// codes.
func amountToMinor(amount decimal.Decimal) (int64, error) {
	minor, err := money.ToMinor(amount)
	switch {
	case err == nil:
		return minor, nil
	case errors.Is(err, money.ErrNotPositive):
		return 0, errs.Validation("amount_must_be_positive")
	case errors.Is(err, money.ErrTooPrecise):
		return 0, errs.Validation("amount_too_precise")
	default:
		return 0, errs.Validation("amount_out_of_range")
	}
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
