package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	BankPaymentsChannel  = "bank:payments"
	agentPaymentsChannel = "agent:payments:"
)

const (
	// lagWindow is how many sequence numbers behind the high-water mark are
	// read again each poll. A payment's seq is taken at insert but becomes
	// visible at commit, so a lower seq can appear after a higher one.
	lagWindow = 100
	pageSize  = 100
)

func AgentPaymentsChannel(agentID string) string {
	return agentPaymentsChannel + agentID
}

type PaymentEvent struct {
	Seq              int64
	PaymentID        string
	LoanID           string
	AgentID          string
	AmountMinor      int64
	Method           string
	OutstandingMinor int64
	LoanStatus       string
	RecordedAt       time.Time
}

type PaymentEventRepository interface {
	LatestPaymentSeq(ctx context.Context) (int64, error)
	ListPaymentEventsSince(ctx context.Context, lastSeq int64, limit int32) ([]PaymentEvent, error)
}

// Notifier polls committed payments and fans them out to subscribers.
type Notifier struct {
	repo         PaymentEventRepository
	hub          *Hub
	logger       *slog.Logger
	pollInterval time.Duration
	primed       bool
	lastSeq      int64
	published    map[int64]struct{}
}

func NewNotifier(repo PaymentEventRepository, hub *Hub, logger *slog.Logger, pollInterval time.Duration) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repo: repo, hub: hub, logger: logger, pollInterval: pollInterval, published: map[int64]struct{}{}}
}

// Run polls until ctx ends. The starting position is the current tail; if it
// cannot be read the notifier keeps trying on every tick.
func (n *Notifier) Run(ctx context.Context) error {
	if err := n.prime(ctx); err != nil && ctx.Err() == nil {
		n.logger.Warn("payment notifier could not read tail, retrying", "err", err)
	}

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !n.primed {
				if err := n.prime(ctx); err != nil {
					if ctx.Err() == nil {
						n.logger.Warn("payment notifier could not read tail, retrying", "err", err)
					}
					continue
				}
			}
			if err := n.tick(ctx); err != nil && ctx.Err() == nil {
				n.logger.Warn("payment notifier poll failed", "err", err)
			}
		}
	}
}

// prime starts from the current tail. Payments already visible inside the
// lag window are history and are marked as seen rather than replayed.
func (n *Notifier) prime(ctx context.Context) error {
	seq, err := n.repo.LatestPaymentSeq(ctx)
	if err != nil {
		return err
	}
	from := seq - lagWindow
	if from < 0 {
		from = 0
	}
	history, err := n.repo.ListPaymentEventsSince(ctx, from, lagWindow+pageSize)
	if err != nil {
		return err
	}
	for _, ev := range history {
		if ev.Seq <= seq {
			n.published[ev.Seq] = struct{}{}
		}
	}
	n.lastSeq = seq
	n.primed = true
	return nil
}

func (n *Notifier) tick(ctx context.Context) error {
	from := n.lastSeq - lagWindow
	if from < 0 {
		from = 0
	}
	events, err := n.repo.ListPaymentEventsSince(ctx, from, lagWindow+pageSize)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Seq > n.lastSeq {
			n.lastSeq = ev.Seq
		}
		if _, seen := n.published[ev.Seq]; seen {
			continue
		}
		n.published[ev.Seq] = struct{}{}
		payload, _ := json.Marshal(map[string]any{
			"event": "payment_recorded",
			"data": map[string]any{
				"payment_id":        ev.PaymentID,
				"loan_id":           ev.LoanID,
				"agent_id":          ev.AgentID,
				"amount_minor":      ev.AmountMinor,
				"payment_method":    ev.Method,
				"outstanding_minor": ev.OutstandingMinor,
				"loan_status":       ev.LoanStatus,
				"recorded_at":       ev.RecordedAt.UTC().Format(time.RFC3339),
			},
		})
		delivered := n.hub.Publish(AgentPaymentsChannel(ev.AgentID), payload)
		delivered += n.hub.Publish(BankPaymentsChannel, payload)
		n.logger.Debug("payment event fanned out", "seq", ev.Seq, "loan_id", ev.LoanID, "delivered", delivered)
	}

	floor := n.lastSeq - lagWindow
	for seq := range n.published {
		if seq <= floor {
			delete(n.published, seq)
		}
	}
	return nil
}
