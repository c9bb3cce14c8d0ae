package loan

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
)

const outboxTopicLoanAssigned = "loan_assigned"

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

type Service struct {
	loanRepo   Repository
	directory  identity.Directory
	outboxRepo OutboxRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(loanRepo Repository, directory identity.Directory, outboxRepo OutboxRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loanRepo:   loanRepo,
		directory:  directory,
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateLoan(ctx context.Context, bank identity.Bank, in CreateInput) (*Entity, error) {
	in.BorrowerName = strings.TrimSpace(in.BorrowerName)
	in.BorrowerEmail = strings.TrimSpace(in.BorrowerEmail)
	in.BorrowerPhone = strings.TrimSpace(in.BorrowerPhone)
	in.BorrowerAddress = strings.TrimSpace(in.BorrowerAddress)
	in.CreatedBy = bank.ID

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	created, err := s.loanRepo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loan created", "loan_id", created.ID, "principal_minor", created.PrincipalMinor, "created_by", bank.ID)
	return created, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case in.BorrowerName == "":
		return errs.Validation("borrower_name_required")
	case in.BorrowerEmail == "":
		return errs.Validation("borrower_email_required")
	case in.BorrowerPhone == "":
		return errs.Validation("borrower_phone_required")
	case in.BorrowerAddress == "":
		return errs.Validation("borrower_address_required")
	case in.PrincipalMinor <= 0:
		return errs.Validation("principal_must_be_positive")
	case in.IssuedDate.IsZero():
		return errs.Validation("issued_date_required")
	case in.DueDate.IsZero():
		return errs.Validation("due_date_required")
	case in.DueDate.Before(in.IssuedDate):
		return errs.Validation("due_date_before_issued_date")
	case strings.TrimSpace(in.CreatedBy) == "":
		return errs.Validation("missing_creator")
	}
	return nil
}

func (s *Service) Assign(ctx context.Context, bank identity.Bank, loanID, agentID string) (*Entity, error) {
	loanID = strings.TrimSpace(loanID)
	agentID = strings.TrimSpace(agentID)
	if loanID == "" {
		return nil, errs.Validation("missing_loan_id")
	}
	if agentID == "" {
		return nil, errs.Validation("missing_agent_id")
	}

	current, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	agent, err := s.directory.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("agent_not_found")
		}
		return nil, err
	}
	if agent.Role != identity.RoleAgent {
		return nil, errs.InvalidRole("identity_not_agent")
	}

	next, err := current.Status.Next(EventAssign{})
	if err != nil {
		return nil, errs.Validation("loan_closed")
	}

	updated, err := s.loanRepo.Assign(ctx, loanID, agentID, next)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// the loan closed between the read and the write
			return nil, errs.Validation("loan_closed")
		}
		return nil, err
	}

	s.logger.Info("loan assigned", "loan_id", loanID, "agent_id", agentID, "assigned_by", bank.ID, "previous_status", string(current.Status))

	payload, _ := json.Marshal(map[string]any{
		"loan_id":       updated.ID,
		"agent_id":      agentID,
		"borrower_name": updated.BorrowerName,
	})
	if err := s.outboxRepo.Enqueue(ctx, outboxTopicLoanAssigned, payload); err != nil {
		s.logger.Warn("enqueue assignment notice failed", "loan_id", loanID, "err", err)
	}
	return updated, nil
}

// ListForViewer returns every loan for the bank and only assigned loans for an
// agent, newest first.
func (s *Service) ListForViewer(ctx context.Context, viewer identity.Viewer) ([]Entity, error) {
	switch v := viewer.(type) {
	case identity.Bank:
		return s.loanRepo.List(ctx, ListFilter{})
	case identity.Agent:
		return s.loanRepo.List(ctx, ListFilter{AssignedAgentID: v.ID})
	default:
		return nil, errs.InvalidRole("unknown_viewer")
	}
}

func (s *Service) GetForViewer(ctx context.Context, viewer identity.Viewer, loanID string) (*Entity, error) {
	if strings.TrimSpace(loanID) == "" {
		return nil, errs.Validation("missing_loan_id")
	}
	item, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	switch v := viewer.(type) {
	case identity.Bank:
		return item, nil
	case identity.Agent:
		if !item.AssignedTo(v.ID) {
			return nil, errs.NotFound("loan_not_found")
		}
		return item, nil
	default:
		return nil, errs.InvalidRole("unknown_viewer")
	}
}

// ListAgents lists identities holding the agent role.
func (s *Service) ListAgents(ctx context.Context, _ identity.Bank) ([]identity.Identity, error) {
	return s.directory.FindByRole(ctx, identity.RoleAgent)
}

// ApplyPayment reduces outstanding by amountMinor, clamped at zero, and moves
// the status along. It does not reject over-payment; callers must.
func ApplyPayment(current Entity, amountMinor int64) (Entity, error) {
	if amountMinor <= 0 {
		return current, errs.Validation("amount_must_be_positive")
	}
	outstanding := current.OutstandingMinor - amountMinor
	if outstanding < 0 {
		outstanding = 0
	}
	next, err := current.Status.Next(EventPayment{Cleared: outstanding == 0})
	if err != nil {
		return current, errs.Validation("loan_not_collectable")
	}
	current.OutstandingMinor = outstanding
	current.Status = next
	return current, nil
}

// ApplyToClosed books an already-charged amount against a recovered or
// defaulted loan. The status is kept and outstanding only ever shrinks
// toward zero.
func ApplyToClosed(current Entity, amountMinor int64) Entity {
	if amountMinor > 0 {
		current.OutstandingMinor -= amountMinor
		if current.OutstandingMinor < 0 {
			current.OutstandingMinor = 0
		}
	}
	return current
}
