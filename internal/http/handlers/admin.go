package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	admindomain "github.com/loanrecovery/backend/internal/domain/admin"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/loanrecovery/backend/internal/report"
)

type AdminService interface {
	Health(ctx context.Context, bank identity.Bank) admindomain.Health
	Stats(ctx context.Context, bank identity.Bank) (*admindomain.Stats, error)
	ExportLoanBook(ctx context.Context, bank identity.Bank, w io.Writer) error
	AuditTrail(ctx context.Context, bank identity.Bank, limit int32) ([]admindomain.AuditEntry, error)
}

type AdminHandler struct {
	adminService AdminService
}

func NewAdminHandler(adminService AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) DatabaseHealth(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	health := h.adminService.Health(c.Request.Context(), bank)
	status := http.StatusOK
	if health.Database != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (h *AdminHandler) DatabaseStats(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	stats, err := h.adminService.Stats(c.Request.Context(), bank)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) ExportLoanBook(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	// buffered so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.adminService.ExportLoanBook(c.Request.Context(), bank, &buf); err != nil {
		writeError(c, err)
		return
	}
	fileName := fmt.Sprintf("loan_book_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, report.LoanBookContentType, buf.Bytes())
}

func (h *AdminHandler) AuditTrail(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	limit := int64(100)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = n
	}
	items, err := h.adminService.AuditTrail(c.Request.Context(), bank, int32(limit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
