package payment

import (
	"context"
	"fmt"
	"time"

	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
)

type Method string

const (
	MethodCash Method = "cash"
	MethodUPI  Method = "upi"
)

func ParseMethod(v string) (Method, error) {
	switch Method(v) {
	case MethodCash:
		return MethodCash, nil
	case MethodUPI:
		return MethodUPI, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", v)
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Entity struct {
	ID             string    `json:"id"`
	LoanID         string    `json:"loan_id"`
	AmountMinor    int64     `json:"amount_minor"`
	Method         Method    `json:"payment_method"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	UPIID          string    `json:"upi_id,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CollectedBy    string    `json:"collected_by"`
	CollectorName  string    `json:"collector_name,omitempty"`
	CollectionDate time.Time `json:"collection_date"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateInput struct {
	LoanID         string
	AmountMinor    int64
	Method         Method
	TransactionID  string
	UPIID          string
	Notes          string
	CollectedBy    string
	CollectionDate time.Time
}

type MethodTotals struct {
	Count       int64 `json:"count"`
	AmountMinor int64 `json:"amount_minor"`
}

type Stats struct {
	TotalPayments    int64        `json:"total_payments"`
	TotalAmountMinor int64        `json:"total_amount_minor"`
	Cash             MethodTotals `json:"cash_payments"`
	UPI              MethodTotals `json:"upi_payments"`
	Recent           []Entity     `json:"recent_payments"`
}

// SettleFunc runs inside the settlement transaction with the locked loan row.
// It returns the payment to insert and the loan state to write back.
type SettleFunc func(current loandomain.Entity) (CreateInput, loandomain.Entity, error)

// OutboxMessage is enqueued in the same transaction as the settlement.
type OutboxMessage struct {
	Topic   string
	Payload []byte
}

type SettleResult struct {
	Payment Entity
	Loan    loandomain.Entity
}

type Repository interface {
	// Settle locks the loan, calls fn, then inserts the payment, updates the
	// loan and enqueues the messages built by outbox in one transaction.
	Settle(ctx context.Context, loanID string, fn SettleFunc, outbox func(SettleResult) []OutboxMessage) (*SettleResult, error)
	ListByLoan(ctx context.Context, loanID string) ([]Entity, error)
	ListByCollector(ctx context.Context, collectorID string) ([]Entity, error)
	SumCompletedByLoan(ctx context.Context, loanID string) (int64, error)
}
