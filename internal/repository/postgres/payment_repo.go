package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/payment"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentSelect = `
SELECT p.id, p.loan_id, p.amount_minor, p.payment_method, p.transaction_id, p.upi_id,
       p.notes, p.collected_by, COALESCE(u.name, ''), p.collection_date, p.status, p.created_at
FROM payments p
LEFT JOIN users u ON u.id = p.collected_by
`

func scanPayment(row pgx.Row) (*payment.Entity, error) {
	out := &payment.Entity{}
	var method, status string
	err := row.Scan(
		&out.ID, &out.LoanID, &out.AmountMinor, &method, &out.TransactionID, &out.UPIID,
		&out.Notes, &out.CollectedBy, &out.CollectorName, &out.CollectionDate, &status, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	out.Method = payment.Method(method)
	out.Status = payment.Status(status)
	return out, nil
}

// Settle runs fn against the row-locked loan and persists its result in a
// single transaction.
func (r *PaymentRepository) Settle(ctx context.Context, loanID string, fn payment.SettleFunc, outbox func(payment.SettleResult) []payment.OutboxMessage) (*payment.SettleResult, error) {
	if !validID(loanID) {
		return nil, errs.NotFound("loan_not_found")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT id FROM loans WHERE id = $1 FOR UPDATE`, loanID); err != nil {
		return nil, fmt.Errorf("lock loan: %w", err)
	}
	current, err := scanLoan(tx.QueryRow(ctx, loanSelect+`WHERE l.id = $1`, loanID))
	if err != nil {
		return nil, err
	}

	in, next, err := fn(*current)
	if err != nil {
		return nil, err
	}

	var paymentID string
	err = tx.QueryRow(ctx, `
INSERT INTO payments (
  loan_id, amount_minor, payment_method, transaction_id, upi_id, notes,
  collected_by, collection_date, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'completed')
RETURNING id
`,
		in.LoanID, in.AmountMinor, string(in.Method), in.TransactionID, in.UPIID, in.Notes,
		in.CollectedBy, in.CollectionDate,
	).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	tag, err := tx.Exec(ctx, `
UPDATE loans SET outstanding_minor = $2, status = $3, updated_at = NOW()
WHERE id = $1
`, loanID, next.OutstandingMinor, string(next.Status))
	if err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, errors.New("update loan: row vanished under lock")
	}

	saved, err := scanPayment(tx.QueryRow(ctx, paymentSelect+`WHERE p.id = $1`, paymentID))
	if err != nil {
		return nil, err
	}
	updated, err := scanLoan(tx.QueryRow(ctx, loanSelect+`WHERE l.id = $1`, loanID))
	if err != nil {
		return nil, err
	}

	res := payment.SettleResult{Payment: *saved, Loan: *updated}
	if outbox != nil {
		for _, msg := range outbox(res) {
			if _, err := tx.Exec(ctx, `INSERT INTO outbox_jobs (topic, payload, status) VALUES ($1, $2::jsonb, 'pending')`, msg.Topic, msg.Payload); err != nil {
				return nil, fmt.Errorf("enqueue %s: %w", msg.Topic, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]payment.Entity, error) {
	if !validID(loanID) {
		return []payment.Entity{}, nil
	}
	return r.list(ctx, paymentSelect+`WHERE p.loan_id = $1 ORDER BY p.created_at DESC, p.seq DESC`, loanID)
}

func (r *PaymentRepository) ListByCollector(ctx context.Context, collectorID string) ([]payment.Entity, error) {
	if !validID(collectorID) {
		return []payment.Entity{}, nil
	}
	return r.list(ctx, paymentSelect+`WHERE p.collected_by = $1 ORDER BY p.created_at DESC, p.seq DESC`, collectorID)
}

func (r *PaymentRepository) SumCompletedByLoan(ctx context.Context, loanID string) (int64, error) {
	if !validID(loanID) {
		return 0, errs.NotFound("loan_not_found")
	}
	var total int64
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(amount_minor), 0)::bigint
FROM payments
WHERE loan_id = $1 AND status = 'completed'
`, loanID).Scan(&total)
	return total, err
}

func (r *PaymentRepository) list(ctx context.Context, q string, args ...any) ([]payment.Entity, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]payment.Entity, 0)
	for rows.Next() {
		item, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
