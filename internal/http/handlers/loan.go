package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	"github.com/loanrecovery/backend/internal/domain/settlement"
	"github.com/loanrecovery/backend/internal/money"
	"github.com/shopspring/decimal"
)

type LoanService interface {
	CreateLoan(ctx context.Context, bank identity.Bank, in loandomain.CreateInput) (*loandomain.Entity, error)
	Assign(ctx context.Context, bank identity.Bank, loanID, agentID string) (*loandomain.Entity, error)
	ListForViewer(ctx context.Context, viewer identity.Viewer) ([]loandomain.Entity, error)
	GetForViewer(ctx context.Context, viewer identity.Viewer, loanID string) (*loandomain.Entity, error)
	ListAgents(ctx context.Context, bank identity.Bank) ([]identity.Identity, error)
}

type LedgerVerifier interface {
	VerifyLedger(ctx context.Context, bank identity.Bank, loanID string) (*settlement.LedgerCheck, error)
}

type LoanHandler struct {
	loanService LoanService
	ledger      LedgerVerifier
}

func NewLoanHandler(loanService LoanService, ledger LedgerVerifier) *LoanHandler {
	return &LoanHandler{loanService: loanService, ledger: ledger}
}

// loanView adds decimal amounts next to the minor-unit fields.
type loanView struct {
	loandomain.Entity
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

func newLoanView(e loandomain.Entity) loanView {
	return loanView{
		Entity:            e,
		PrincipalAmount:   money.FromMinor(e.PrincipalMinor),
		OutstandingAmount: money.FromMinor(e.OutstandingMinor),
	}
}

type createLoanRequest struct {
	BorrowerName    string          `json:"borrower_name"`
	BorrowerEmail   string          `json:"borrower_email"`
	BorrowerPhone   string          `json:"borrower_phone"`
	BorrowerAddress string          `json:"borrower_address"`
	Amount          decimal.Decimal `json:"amount"`
	IssuedDate      string          `json:"issued_date"`
	DueDate         string          `json:"due_date"`
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	principal, err := amountToMinor(req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	issued, err := parseDate(strings.TrimSpace(req.IssuedDate))
	if err != nil {
		writeError(c, errs.Validation("invalid_issued_date"))
		return
	}
	due, err := parseDate(strings.TrimSpace(req.DueDate))
	if err != nil {
		writeError(c, errs.Validation("invalid_due_date"))
		return
	}

	created, err := h.loanService.CreateLoan(c.Request.Context(), bank, loandomain.CreateInput{
		BorrowerName:    req.BorrowerName,
		BorrowerEmail:   req.BorrowerEmail,
		BorrowerPhone:   req.BorrowerPhone,
		BorrowerAddress: req.BorrowerAddress,
		PrincipalMinor:  principal,
		IssuedDate:      issued,
		DueDate:         due,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newLoanView(*created))
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	viewer, ok := viewerOrForbidden(c)
	if !ok {
		return
	}
	items, err := h.loanService.ListForViewer(c.Request.Context(), viewer)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]loanView, 0, len(items))
	for _, item := range items {
		out = append(out, newLoanView(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	viewer, ok := viewerOrForbidden(c)
	if !ok {
		return
	}
	item, err := h.loanService.GetForViewer(c.Request.Context(), viewer, strings.TrimSpace(c.Param("loanId")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoanView(*item))
}

func (h *LoanHandler) AssignLoan(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.loanService.Assign(c.Request.Context(), bank, c.Param("loanId"), req.AgentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoanView(*updated))
}

func (h *LoanHandler) VerifyLedger(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	check, err := h.ledger.VerifyLedger(c.Request.Context(), bank, c.Param("loanId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (h *LoanHandler) ListAgents(c *gin.Context) {
	bank, ok := bankFrom(c)
	if !ok {
		forbidden(c)
		return
	}
	agents, err := h.loanService.ListAgents(c.Request.Context(), bank)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": agents})
}
