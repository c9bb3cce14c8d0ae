package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/loan"
)

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanSelect = `
SELECT l.id, l.borrower_name, l.borrower_email, l.borrower_phone, l.borrower_address,
       l.principal_minor, l.outstanding_minor, l.issued_date, l.due_date, l.status,
       l.assigned_agent_id, u.name, u.agent_code, l.created_by, l.created_at, l.updated_at
FROM loans l
LEFT JOIN users u ON u.id = l.assigned_agent_id
`

func scanLoan(row pgx.Row) (*loan.Entity, error) {
	out := &loan.Entity{}
	var status string
	var agentName, agentCode *string
	err := row.Scan(
		&out.ID, &out.BorrowerName, &out.BorrowerEmail, &out.BorrowerPhone, &out.BorrowerAddress,
		&out.PrincipalMinor, &out.OutstandingMinor, &out.IssuedDate, &out.DueDate, &status,
		&out.AssignedAgentID, &agentName, &agentCode, &out.CreatedBy, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("loan_not_found")
		}
		return nil, err
	}
	out.Status = loan.Status(status)
	if out.AssignedAgentID != nil {
		ref := &loan.AgentRef{ID: *out.AssignedAgentID}
		if agentName != nil {
			ref.Name = *agentName
		}
		if agentCode != nil {
			ref.AgentCode = *agentCode
		}
		out.AssignedAgent = ref
	}
	return out, nil
}

func (r *LoanRepository) Create(ctx context.Context, in loan.CreateInput) (*loan.Entity, error) {
	q := `
INSERT INTO loans (
  borrower_name, borrower_email, borrower_phone, borrower_address,
  principal_minor, outstanding_minor, issued_date, due_date, status, created_by
) VALUES ($1,$2,$3,$4,$5,$5,$6,$7,'pending',$8)
RETURNING id
`
	var id string
	err := r.pool.QueryRow(ctx, q,
		in.BorrowerName, in.BorrowerEmail, in.BorrowerPhone, in.BorrowerAddress,
		in.PrincipalMinor, in.IssuedDate, in.DueDate, in.CreatedBy,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	if !validID(id) {
		return nil, errs.NotFound("loan_not_found")
	}
	return scanLoan(r.pool.QueryRow(ctx, loanSelect+`WHERE l.id = $1`, id))
}

func (r *LoanRepository) List(ctx context.Context, f loan.ListFilter) ([]loan.Entity, error) {
	builder := strings.Builder{}
	builder.WriteString(loanSelect)
	builder.WriteString("WHERE 1=1")

	args := []any{}
	argPos := 1
	if strings.TrimSpace(f.AssignedAgentID) != "" {
		builder.WriteString(" AND l.assigned_agent_id = $")
		builder.WriteString(strconv.Itoa(argPos))
		args = append(args, f.AssignedAgentID)
	}
	builder.WriteString(" ORDER BY l.created_at DESC, l.id DESC")

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Entity, 0)
	for rows.Next() {
		item, err := scanLoan(rows)
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

// Assign only touches loans that are still open.
func (r *LoanRepository) Assign(ctx context.Context, loanID, agentID string, status loan.Status) (*loan.Entity, error) {
	q := `
UPDATE loans
SET assigned_agent_id = $2, status = $3, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'assigned', 'in_recovery')
`
	tag, err := r.pool.Exec(ctx, q, loanID, agentID, string(status))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, errs.NotFound("loan_not_found")
	}
	return r.GetByID(ctx, loanID)
}

// validID keeps malformed ids from reaching postgres as a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
