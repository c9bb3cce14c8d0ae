package gateway

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/loanrecovery/backend/internal/domain/errs"
)

var payeeIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}@[A-Za-z]{2,64}$`)

// ValidatePayeeID reports whether id looks like a UPI virtual payment address.
func ValidatePayeeID(id string) bool {
	return payeeIDPattern.MatchString(id)
}

type Receipt struct {
	TransactionID string    `json:"transaction_id"`
	AmountMinor   int64     `json:"amount_minor"`
	Timestamp     time.Time `json:"timestamp"`
	PayeeID       string    `json:"upi_id"`
}

// Charger clears a UPI payment. Implementations give no idempotency
// guarantee: two calls with the same input may both move money.
type Charger interface {
	Charge(ctx context.Context, amountMinor int64, payeeID string) (*Receipt, error)
}

const txnAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	idMu   sync.Mutex
	idRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateTransactionID returns TXN, the unix time in milliseconds and nine
// random base36 characters. Unique enough for receipts, not guaranteed.
func GenerateTransactionID() string {
	var b strings.Builder
	b.WriteString("TXN")
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	idMu.Lock()
	for i := 0; i < 9; i++ {
		b.WriteByte(txnAlphabet[idRand.Intn(len(txnAlphabet))])
	}
	idMu.Unlock()
	return b.String()
}

// Simulator stands in for a UPI rail: it sleeps for Latency and succeeds with
// probability SuccessRate.
type Simulator struct {
	latency     time.Duration
	successRate float64

	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

func NewSimulator(latency time.Duration, successRate float64) *Simulator {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Simulator{
		latency:     latency,
		successRate: successRate,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Simulator) Charge(ctx context.Context, amountMinor int64, payeeID string) (*Receipt, error) {
	if amountMinor <= 0 {
		return nil, errs.Validation("amount_must_be_positive")
	}
	if !ValidatePayeeID(payeeID) {
		return nil, errs.Validation("invalid_upi_id")
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, errs.OutcomeUnknown("gateway_outcome_unknown")
		case <-timer.C:
		}
	} else if ctx.Err() != nil {
		return nil, errs.OutcomeUnknown("gateway_outcome_unknown")
	}

	s.mu.Lock()
	roll := s.rand.Float64()
	s.mu.Unlock()
	if roll >= s.successRate {
		return nil, errs.Gateway("payment_failed_retry")
	}

	return &Receipt{
		TransactionID: GenerateTransactionID(),
		AmountMinor:   amountMinor,
		Timestamp:     s.now(),
		PayeeID:       payeeID,
	}, nil
}
