package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	paymentdomain "github.com/loanrecovery/backend/internal/domain/payment"
	"github.com/loanrecovery/backend/internal/domain/settlement"
	"github.com/loanrecovery/backend/internal/gateway"
	"github.com/loanrecovery/backend/internal/money"
	"github.com/shopspring/decimal"
)

type SettlementService interface {
	RecordPayment(ctx context.Context, agent identity.Agent, in settlement.RecordInput) (*settlement.Result, error)
	PreviewCharge(ctx context.Context, agent identity.Agent, amountMinor int64, upiID string) (*gateway.Receipt, error)
	ListPayments(ctx context.Context, viewer identity.Viewer, loanID string) ([]paymentdomain.Entity, error)
	AgentStats(ctx context.Context, agent identity.Agent) (*paymentdomain.Stats, error)
}

type PaymentHandler struct {
	settlement SettlementService
}

func NewPaymentHandler(settlement SettlementService) *PaymentHandler {
	return &PaymentHandler{settlement: settlement}
}

type paymentView struct {
	paymentdomain.Entity
	Amount decimal.Decimal `json:"amount"`
}

func newPaymentView(p paymentdomain.Entity) paymentView {
	return paymentView{Entity: p, Amount: money.FromMinor(p.AmountMinor)}
}

func newPaymentViews(items []paymentdomain.Entity) []paymentView {
	out := make([]paymentView, 0, len(items))
	for _, item := range items {
		out = append(out, newPaymentView(item))
	}
	return out
}

type recordPaymentRequest struct {
	LoanID        string          `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	UPIID         string          `json:"upi_id"`
	Notes         string          `json:"notes"`
	TransactionID string          `json:"transaction_id"`
}

func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	agent, ok := agentFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	amountMinor, err := amountToMinor(req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	method, err := paymentdomain.ParseMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if err != nil {
		writeError(c, errs.Validation("invalid_payment_method"))
		return
	}

	res, err := h.settlement.RecordPayment(c.Request.Context(), agent, settlement.RecordInput{
		LoanID:        req.LoanID,
		AmountMinor:   amountMinor,
		Method:        method,
		UPIID:         req.UPIID,
		Notes:         req.Notes,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment":                newPaymentView(res.Payment),
		"remaining_amount":       money.FromMinor(res.NewOutstandingMinor),
		"remaining_amount_minor": res.NewOutstandingMinor,
		"loan_status":            res.NewStatus,
		"payment_result":         res.Receipt,
	})
}

type processUPIRequest struct {
	Amount decimal.Decimal `json:"amount"`
	UPIID  string          `json:"upi_id"`
}

func (h *PaymentHandler) ProcessUPI(c *gin.Context) {
	agent, ok := agentFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	var req processUPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	amountMinor, err := amountToMinor(req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	receipt, err := h.settlement.PreviewCharge(c.Request.Context(), agent, amountMinor, req.UPIID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"amount":  money.FromMinor(receipt.AmountMinor),
		"receipt": receipt,
	})
}

func (h *PaymentHandler) ListLoanPayments(c *gin.Context) {
	viewer, ok := viewerOrForbidden(c)
	if !ok {
		return
	}
	items, err := h.settlement.ListPayments(c.Request.Context(), viewer, c.Param("loanId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newPaymentViews(items)})
}

func (h *PaymentHandler) Stats(c *gin.Context) {
	agent, ok := agentFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	stats, err := h.settlement.AgentStats(c.Request.Context(), agent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_payments":     stats.TotalPayments,
		"total_amount":       money.FromMinor(stats.TotalAmountMinor),
		"total_amount_minor": stats.TotalAmountMinor,
		"cash_payments":      stats.Cash,
		"upi_payments":       stats.UPI,
		"recent_payments":    newPaymentViews(stats.Recent),
	})
}
