package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	admindomain "github.com/loanrecovery/backend/internal/domain/admin"
	"github.com/loanrecovery/backend/internal/domain/loan"
)

type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *StatsRepository) Stats(ctx context.Context) (*admindomain.Stats, error) {
	out := &admindomain.Stats{
		LoansByStatus:    make([]admindomain.StatusBucket, 0, len(loan.AllStatuses)),
		PaymentsByMethod: make([]admindomain.MethodBucket, 0, 2),
	}

	qUsers := `
SELECT
  COUNT(*) FILTER (WHERE role = 'bank')::bigint,
  COUNT(*) FILTER (WHERE role = 'agent')::bigint
FROM users
`
	if err := r.pool.QueryRow(ctx, qUsers).Scan(&out.Banks, &out.Agents); err != nil {
		return nil, err
	}

	qLoans := `
SELECT status, COUNT(*)::bigint, COALESCE(SUM(principal_minor), 0)::bigint, COALESCE(SUM(outstanding_minor), 0)::bigint
FROM loans
GROUP BY status
`
	rows, err := r.pool.Query(ctx, qLoans)
	if err != nil {
		return nil, err
	}
	byStatus := map[loan.Status]admindomain.StatusBucket{}
	for rows.Next() {
		var b admindomain.StatusBucket
		var status string
		if err := rows.Scan(&status, &b.Count, &b.PrincipalMinor, &b.OutstandingMinor); err != nil {
			rows.Close()
			return nil, err
		}
		b.Status = loan.Status(status)
		byStatus[b.Status] = b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range loan.AllStatuses {
		b := byStatus[s]
		b.Status = s
		out.Loans += b.Count
		out.LoansByStatus = append(out.LoansByStatus, b)
	}

	qPayments := `
SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(amount_minor), 0)::bigint
FROM payments
WHERE status = 'completed'
GROUP BY payment_method
ORDER BY payment_method ASC
`
	rows, err = r.pool.Query(ctx, qPayments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b admindomain.MethodBucket
		if err := rows.Scan(&b.Method, &b.Count, &b.AmountMinor); err != nil {
			return nil, err
		}
		out.Payments += b.Count
		out.CollectedMinor += b.AmountMinor
		out.PaymentsByMethod = append(out.PaymentsByMethod, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
