// Package settlement records repayments against loans. It is the only path
// that writes payments or moves a loan's outstanding balance.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	paymentdomain "github.com/loanrecovery/backend/internal/domain/payment"
	"github.com/loanrecovery/backend/internal/gateway"
)

const (
	outboxTopicPaymentReceipt = "payment_receipt"
	recentPaymentsLimit       = 5
)

type LoanReader interface {
	GetByID(ctx context.Context, id string) (*loandomain.Entity, error)
}

type RecordInput struct {
	LoanID        string
	AmountMinor   int64
	Method        paymentdomain.Method
	UPIID         string
	Notes         string
	TransactionID string
}

type Result struct {
	Payment             paymentdomain.Entity `json:"payment"`
	NewOutstandingMinor int64                `json:"remaining_amount_minor"`
	NewStatus           loandomain.Status    `json:"loan_status"`
	Receipt             *gateway.Receipt     `json:"payment_result,omitempty"`
}

// LedgerCheck compares a loan's stored balance with its payment history.
type LedgerCheck struct {
	LoanID           string `json:"loan_id"`
	PrincipalMinor   int64  `json:"principal_minor"`
	OutstandingMinor int64  `json:"outstanding_minor"`
	CollectedMinor   int64  `json:"collected_minor"`
	Consistent       bool   `json:"consistent"`
	DiscrepancyMinor int64  `json:"discrepancy_minor"`
}

type Service struct {
	loanRepo    LoanReader
	paymentRepo paymentdomain.Repository
	charger     gateway.Charger
	logger      *slog.Logger
	locks       *loanLocks
	newTxnID    func() string
	now         func() time.Time

	// chargeTimeout bounds each gateway call; zero leaves it to the caller.
	chargeTimeout time.Duration
}

func NewService(loanRepo LoanReader, paymentRepo paymentdomain.Repository, charger gateway.Charger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		charger:     charger,
		logger:      logger,
		locks:       newLoanLocks(),
		newTxnID:    gateway.GenerateTransactionID,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) RecordPayment(ctx context.Context, agent identity.Agent, in RecordInput) (*Result, error) {
	in.LoanID = strings.TrimSpace(in.LoanID)
	in.UPIID = strings.TrimSpace(in.UPIID)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.LoanID == "" {
		return nil, errs.Validation("missing_loan_id")
	}
	if in.AmountMinor <= 0 {
		return nil, errs.Validation("amount_must_be_positive")
	}
	if in.Method != paymentdomain.MethodCash && in.Method != paymentdomain.MethodUPI {
		return nil, errs.Validation("invalid_payment_method")
	}
	if in.Method == paymentdomain.MethodUPI {
		if in.UPIID == "" {
			return nil, errs.Validation("upi_id_required")
		}
		if !gateway.ValidatePayeeID(in.UPIID) {
			return nil, errs.Validation("invalid_upi_id")
		}
	}

	unlock := s.locks.lock(in.LoanID)
	defer unlock()

	current, err := s.loanRepo.GetByID(ctx, in.LoanID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("loan_not_found")
		}
		return nil, err
	}
	if !current.AssignedTo(agent.ID) {
		return nil, errs.NotFound("loan_not_found")
	}
	if in.AmountMinor > current.OutstandingMinor {
		return nil, errs.Validation("amount_exceeds_outstanding")
	}
	if _, err := loandomain.ApplyPayment(*current, in.AmountMinor); err != nil {
		return nil, err
	}

	var receipt *gateway.Receipt
	txnID := in.TransactionID
	upiID := ""
	writeCtx := ctx

	switch in.Method {
	case paymentdomain.MethodUPI:
		receipt, err = s.charge(ctx, in.AmountMinor, in.UPIID)
		if err != nil {
			s.logger.Warn("upi charge not completed", "loan_id", in.LoanID, "agent_id", agent.ID, "amount_minor", in.AmountMinor, "err", err)
			return nil, gatewayError(err)
		}
		txnID = receipt.TransactionID
		upiID = in.UPIID
		// money has moved; the write must not be abandoned with the request
		writeCtx = context.WithoutCancel(ctx)
	case paymentdomain.MethodCash:
		if txnID == "" {
			txnID = s.newTxnID()
		}
	}

	charged := receipt != nil
	settled, err := s.paymentRepo.Settle(writeCtx, in.LoanID, func(locked loandomain.Entity) (paymentdomain.CreateInput, loandomain.Entity, error) {
		if !locked.AssignedTo(agent.ID) {
			if !charged {
				return paymentdomain.CreateInput{}, locked, errs.NotFound("loan_not_found")
			}
			s.logger.Warn("loan reassigned during upi charge, recording anyway", "loan_id", locked.ID, "agent_id", agent.ID, "transaction_id", txnID)
		}
		if in.AmountMinor > locked.OutstandingMinor {
			if !charged {
				return paymentdomain.CreateInput{}, locked, errs.Validation("amount_exceeds_outstanding")
			}
			s.logger.Warn("charged amount exceeds outstanding, clamping", "loan_id", locked.ID, "amount_minor", in.AmountMinor, "outstanding_minor", locked.OutstandingMinor, "transaction_id", txnID)
		}
		var next loandomain.Entity
		var err error
		if charged && locked.Status.Terminal() {
			// money has moved and there is no reversal; record it against
			// the closed loan without reopening it
			s.logger.Warn("charged payment on closed loan, recording without transition", "loan_id", locked.ID, "status", string(locked.Status), "amount_minor", in.AmountMinor, "transaction_id", txnID)
			next = loandomain.ApplyToClosed(locked, in.AmountMinor)
		} else {
			next, err = loandomain.ApplyPayment(locked, in.AmountMinor)
			if err != nil {
				return paymentdomain.CreateInput{}, locked, err
			}
		}
		return paymentdomain.CreateInput{
			LoanID:         locked.ID,
			AmountMinor:    in.AmountMinor,
			Method:         in.Method,
			TransactionID:  txnID,
			UPIID:          upiID,
			Notes:          in.Notes,
			CollectedBy:    agent.ID,
			CollectionDate: s.now(),
		}, next, nil
	}, receiptMessages)
	if err != nil {
		if charged {
			s.logger.Error("charged payment not recorded", "loan_id", in.LoanID, "transaction_id", txnID, "amount_minor", in.AmountMinor, "err", err)
		}
		return nil, err
	}

	s.logger.Info("payment recorded",
		"loan_id", in.LoanID,
		"payment_id", settled.Payment.ID,
		"method", string(in.Method),
		"amount_minor", in.AmountMinor,
		"outstanding_minor", settled.Loan.OutstandingMinor,
		"status", string(settled.Loan.Status),
	)

	return &Result{
		Payment:             settled.Payment,
		NewOutstandingMinor: settled.Loan.OutstandingMinor,
		NewStatus:           settled.Loan.Status,
		Receipt:             receipt,
	}, nil
}

// WithChargeTimeout caps how long a single gateway charge may take. A charge
// that runs out of time is reported as an unknown outcome and never retried.
func (s *Service) WithChargeTimeout(d time.Duration) *Service {
	s.chargeTimeout = d
	return s
}

func (s *Service) charge(ctx context.Context, amountMinor int64, upiID string) (*gateway.Receipt, error) {
	if s.chargeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.chargeTimeout)
		defer cancel()
	}
	return s.charger.Charge(ctx, amountMinor, upiID)
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, errs.ErrGateway), errors.Is(err, errs.ErrOutcomeUnknown), errors.Is(err, errs.ErrValidation):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.OutcomeUnknown("gateway_outcome_unknown")
	default:
		return errs.Gateway("payment_failed_retry")
	}
}

func receiptMessages(res paymentdomain.SettleResult) []paymentdomain.OutboxMessage {
	payload, _ := json.Marshal(map[string]any{
		"payment_id":        res.Payment.ID,
		"loan_id":           res.Loan.ID,
		"borrower_name":     res.Loan.BorrowerName,
		"borrower_email":    res.Loan.BorrowerEmail,
		"amount_minor":      res.Payment.AmountMinor,
		"method":            res.Payment.Method,
		"transaction_id":    res.Payment.TransactionID,
		"outstanding_minor": res.Loan.OutstandingMinor,
		"loan_status":       res.Loan.Status,
		"collected_at":      res.Payment.CollectionDate.UTC().Format(time.RFC3339),
	})
	return []paymentdomain.OutboxMessage{{Topic: outboxTopicPaymentReceipt, Payload: payload}}
}

// PreviewCharge runs a UPI charge without recording anything.
func (s *Service) PreviewCharge(ctx context.Context, agent identity.Agent, amountMinor int64, upiID string) (*gateway.Receipt, error) {
	upiID = strings.TrimSpace(upiID)
	if amountMinor <= 0 {
		return nil, errs.Validation("amount_must_be_positive")
	}
	if upiID == "" {
		return nil, errs.Validation("upi_id_required")
	}
	if !gateway.ValidatePayeeID(upiID) {
		return nil, errs.Validation("invalid_upi_id")
	}
	receipt, err := s.charge(ctx, amountMinor, upiID)
	if err != nil {
		s.logger.Warn("upi preview charge not completed", "agent_id", agent.ID, "amount_minor", amountMinor, "err", err)
		return nil, gatewayError(err)
	}
	s.logger.Info("upi preview charge", "agent_id", agent.ID, "transaction_id", receipt.TransactionID, "amount_minor", amountMinor)
	return receipt, nil
}

func (s *Service) ListPayments(ctx context.Context, viewer identity.Viewer, loanID string) ([]paymentdomain.Entity, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, errs.Validation("missing_loan_id")
	}
	item, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	switch v := viewer.(type) {
	case identity.Bank:
	case identity.Agent:
		if !item.AssignedTo(v.ID) {
			return nil, errs.NotFound("loan_not_found")
		}
	default:
		return nil, errs.InvalidRole("unknown_viewer")
	}
	return s.paymentRepo.ListByLoan(ctx, loanID)
}

func (s *Service) AgentStats(ctx context.Context, agent identity.Agent) (*paymentdomain.Stats, error) {
	items, err := s.paymentRepo.ListByCollector(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	stats := &paymentdomain.Stats{Recent: []paymentdomain.Entity{}}
	for _, p := range items {
		if p.Status != paymentdomain.StatusCompleted {
			continue
		}
		stats.TotalPayments++
		stats.TotalAmountMinor += p.AmountMinor
		switch p.Method {
		case paymentdomain.MethodCash:
			stats.Cash.Count++
			stats.Cash.AmountMinor += p.AmountMinor
		case paymentdomain.MethodUPI:
			stats.UPI.Count++
			stats.UPI.AmountMinor += p.AmountMinor
		}
		if len(stats.Recent) < recentPaymentsLimit {
			stats.Recent = append(stats.Recent, p)
		}
	}
	return stats, nil
}

// VerifyLedger checks principal - outstanding against collected payments.
func (s *Service) VerifyLedger(ctx context.Context, _ identity.Bank, loanID string) (*LedgerCheck, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, errs.Validation("missing_loan_id")
	}
	item, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	collected, err := s.paymentRepo.SumCompletedByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	repaid := item.PrincipalMinor - item.OutstandingMinor
	check := &LedgerCheck{
		LoanID:           item.ID,
		PrincipalMinor:   item.PrincipalMinor,
		OutstandingMinor: item.OutstandingMinor,
		CollectedMinor:   collected,
		DiscrepancyMinor: collected - repaid,
	}
	check.Consistent = check.DiscrepancyMinor == 0
	if !check.Consistent {
		s.logger.Warn("ledger discrepancy", "loan_id", item.ID, "discrepancy_minor", check.DiscrepancyMinor)
	}
	return check, nil
}
