package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/loanrecovery/backend/internal/notify"
)

const (
	paymentReceiptTopic = "payment_receipt"
	loanAssignedTopic   = "loan_assigned"
)

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

type Worker struct {
	outboxRepo   OutboxRepository
	directory    identity.Directory
	sender       notify.Sender
	logger       *slog.Logger
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, directory identity.Directory, sender notify.Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		outboxRepo:  outboxRepo,
		directory:   directory,
		sender:      sender,
		logger:      logger,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

// RunOnce claims a batch and settles every claimed job. Once ctx ends the
// remaining jobs are handed back as pending; bookkeeping writes run detached
// from ctx so no claimed job is left in processing.
func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	var failed []error
	for _, job := range jobs {
		if ctx.Err() != nil {
			if err := w.release(ctx, job); err != nil {
				failed = append(failed, err)
			}
			continue
		}
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("outbox bookkeeping failed", "job_id", job.ID, "topic", job.Topic, "err", err)
			failed = append(failed, err)
		}
	}

	return errors.Join(failed...)
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	switch job.Topic {
	case paymentReceiptTopic:
		return w.processPaymentReceipt(ctx, job)
	case loanAssignedTopic:
		return w.processLoanAssigned(ctx, job)
	default:
		return w.handleJobError(ctx, job, errors.New("unsupported_topic"))
	}
}

// release returns a job that was claimed but never attempted.
func (w *Worker) release(ctx context.Context, job OutboxJob) error {
	return w.outboxRepo.MarkRetry(context.WithoutCancel(ctx), job.ID, w.now(), "worker_stopped")
}

func (w *Worker) markDone(ctx context.Context, job OutboxJob) error {
	return w.outboxRepo.MarkDone(context.WithoutCancel(ctx), job.ID)
}

type paymentReceiptPayload struct {
	PaymentID        string `json:"payment_id"`
	LoanID           string `json:"loan_id"`
	BorrowerName     string `json:"borrower_name"`
	BorrowerEmail    string `json:"borrower_email"`
	AmountMinor      int64  `json:"amount_minor"`
	Method           string `json:"method"`
	TransactionID    string `json:"transaction_id"`
	OutstandingMinor int64  `json:"outstanding_minor"`
	LoanStatus       string `json:"loan_status"`
}

func (w *Worker) processPaymentReceipt(ctx context.Context, job OutboxJob) error {
	var payload paymentReceiptPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return w.handleJobError(ctx, job, errors.New("invalid_payload"))
	}
	if strings.TrimSpace(payload.BorrowerEmail) == "" {
		// nothing to deliver to
		return w.markDone(ctx, job)
	}

	msg := notify.ReceiptMessage(notify.Receipt{
		BorrowerName:     payload.BorrowerName,
		BorrowerEmail:    payload.BorrowerEmail,
		AmountMinor:      payload.AmountMinor,
		Method:           payload.Method,
		TransactionID:    payload.TransactionID,
		OutstandingMinor: payload.OutstandingMinor,
		LoanStatus:       payload.LoanStatus,
	})
	if err := w.sender.Send(ctx, msg); err != nil {
		return w.handleJobError(ctx, job, err)
	}
	w.logger.Info("payment receipt delivered", "job_id", job.ID, "payment_id", payload.PaymentID, "loan_id", payload.LoanID)
	return w.markDone(ctx, job)
}

type loanAssignedPayload struct {
	LoanID       string `json:"loan_id"`
	AgentID      string `json:"agent_id"`
	BorrowerName string `json:"borrower_name"`
}

func (w *Worker) processLoanAssigned(ctx context.Context, job OutboxJob) error {
	var payload loanAssignedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return w.handleJobError(ctx, job, errors.New("invalid_payload"))
	}
	if payload.AgentID == "" {
		return w.handleJobError(ctx, job, errors.New("missing_agent_id"))
	}

	agent, err := w.directory.FindByID(ctx, payload.AgentID)
	if err != nil {
		return w.handleJobError(ctx, job, err)
	}

	msg := notify.AssignmentMessage(notify.Assignment{
		AgentName:    agent.DisplayName,
		AgentEmail:   agent.Email,
		LoanID:       payload.LoanID,
		BorrowerName: payload.BorrowerName,
	})
	if err := w.sender.Send(ctx, msg); err != nil {
		return w.handleJobError(ctx, job, err)
	}
	w.logger.Info("assignment notice delivered", "job_id", job.ID, "loan_id", payload.LoanID, "agent_id", payload.AgentID)
	return w.markDone(ctx, job)
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	w.logger.Warn("outbox job failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "err", msg)
	markCtx := context.WithoutCancel(ctx)
	if job.Attempts >= w.maxAttempts {
		return w.outboxRepo.MarkFailed(markCtx, job.ID, msg)
	}
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(markCtx, job.ID, next, msg)
}
