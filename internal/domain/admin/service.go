package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/loanrecovery/backend/internal/domain/identity"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	"github.com/loanrecovery/backend/internal/report"
)

type StatusBucket struct {
	Status           loandomain.Status `json:"status"`
	Count            int64             `json:"count"`
	PrincipalMinor   int64             `json:"principal_minor"`
	OutstandingMinor int64             `json:"outstanding_minor"`
}

type MethodBucket struct {
	Method      string `json:"payment_method"`
	Count       int64  `json:"count"`
	AmountMinor int64  `json:"amount_minor"`
}

type Stats struct {
	Banks            int64          `json:"banks"`
	Agents           int64          `json:"agents"`
	Loans            int64          `json:"loans"`
	LoansByStatus    []StatusBucket `json:"loans_by_status"`
	Payments         int64          `json:"payments"`
	CollectedMinor   int64          `json:"collected_minor"`
	PaymentsByMethod []MethodBucket `json:"payments_by_method"`
}

type Health struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

type StatsRepository interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
}

type LoanLister interface {
	List(ctx context.Context, f loandomain.ListFilter) ([]loandomain.Entity, error)
}

type AuditRepository interface {
	Log(ctx context.Context, in AuditLogInput) error
	Recent(ctx context.Context, limit int32) ([]AuditEntry, error)
}

type AuditLogInput struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Payload    []byte
}

type AuditEntry struct {
	ID         int64           `json:"id"`
	ActorID    string          `json:"actor_id"`
	ActorName  string          `json:"actor_name"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Service struct {
	statsRepo StatsRepository
	loanRepo  LoanLister
	auditRepo AuditRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(statsRepo StatsRepository, loanRepo LoanLister, auditRepo AuditRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		statsRepo: statsRepo,
		loanRepo:  loanRepo,
		auditRepo: auditRepo,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Health never fails; an unreachable database is reported in the body.
func (s *Service) Health(ctx context.Context, _ identity.Bank) Health {
	started := s.now()
	out := Health{Status: "ok", Database: "ok", CheckedAt: started}
	if err := s.statsRepo.Ping(ctx); err != nil {
		s.logger.Warn("database ping failed", "err", err)
		out.Status = "degraded"
		out.Database = "error"
	}
	out.LatencyMS = s.now().Sub(started).Milliseconds()
	return out
}

func (s *Service) Stats(ctx context.Context, _ identity.Bank) (*Stats, error) {
	return s.statsRepo.Stats(ctx)
}

// ExportLoanBook writes every loan as XLSX and records who exported it.
func (s *Service) ExportLoanBook(ctx context.Context, bank identity.Bank, w io.Writer) error {
	loans, err := s.loanRepo.List(ctx, loandomain.ListFilter{})
	if err != nil {
		return err
	}
	if err := report.WriteLoanBook(w, loans); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]any{"loans": len(loans)})
	if err := s.auditRepo.Log(ctx, AuditLogInput{
		ActorID:    bank.ID,
		Action:     "loan_book_exported",
		TargetType: "loan_book",
		TargetID:   s.now().Format("2006-01-02"),
		Payload:    payload,
	}); err != nil {
		s.logger.Warn("audit log failed", "action", "loan_book_exported", "err", err)
	}
	return nil
}

func (s *Service) AuditTrail(ctx context.Context, _ identity.Bank, limit int32) ([]AuditEntry, error) {
	return s.auditRepo.Recent(ctx, limit)
}
