package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loanrecovery/backend/internal/ws"
)

type WSRepository struct {
	pool *pgxpool.Pool
}

func NewWSRepository(pool *pgxpool.Pool) *WSRepository {
	return &WSRepository{pool: pool}
}

// LatestPaymentSeq lets a fresh notifier start from the current tail instead
// of replaying history.
func (r *WSRepository) LatestPaymentSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0)::bigint FROM payments`).Scan(&seq)
	return seq, err
}

func (r *WSRepository) ListPaymentEventsSince(ctx context.Context, lastSeq int64, limit int32) ([]ws.PaymentEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT p.seq, p.id, p.loan_id, p.collected_by, p.amount_minor, p.payment_method,
       l.outstanding_minor, l.status, p.created_at
FROM payments p
JOIN loans l ON l.id = p.loan_id
WHERE p.seq > $1 AND p.status = 'completed'
ORDER BY p.seq ASC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, lastSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ws.PaymentEvent, 0)
	for rows.Next() {
		var ev ws.PaymentEvent
		if err := rows.Scan(&ev.Seq, &ev.PaymentID, &ev.LoanID, &ev.AgentID, &ev.AmountMinor, &ev.Method,
			&ev.OutstandingMinor, &ev.LoanStatus, &ev.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
