package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/loanrecovery/backend/internal/notify"
)

type fakeOutboxRepo struct {
	jobs      []OutboxJob
	doneIDs   []int64
	retryIDs  []int64
	failedIDs []int64
	lastError string
	// ctx.Err() seen by each Mark call
	markErrs []error
}

func (r *fakeOutboxRepo) ClaimPending(_ context.Context, _ int32) ([]OutboxJob, error) {
	return r.jobs, nil
}

func (r *fakeOutboxRepo) MarkDone(ctx context.Context, jobID int64) error {
	r.markErrs = append(r.markErrs, ctx.Err())
	r.doneIDs = append(r.doneIDs, jobID)
	return nil
}

func (r *fakeOutboxRepo) MarkRetry(ctx context.Context, jobID int64, _ time.Time, lastError string) error {
	r.markErrs = append(r.markErrs, ctx.Err())
	r.retryIDs = append(r.retryIDs, jobID)
	r.lastError = lastError
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	r.markErrs = append(r.markErrs, ctx.Err())
	r.failedIDs = append(r.failedIDs, jobID)
	r.lastError = lastError
	return nil
}

type fakeDirectory struct {
	users map[string]identity.Identity
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (*identity.Identity, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, errs.NotFound("user_not_found")
	}
	return &u, nil
}

func (d *fakeDirectory) FindByRole(_ context.Context, role identity.Role) ([]identity.Identity, error) {
	out := []identity.Identity{}
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeSender struct {
	sent []notify.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// stallingSender holds every send until the caller gives up.
type stallingSender struct {
	calls int
}

func (s *stallingSender) Send(ctx context.Context, _ notify.Message) error {
	s.calls++
	<-ctx.Done()
	return ctx.Err()
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]identity.Identity{
		"agent-1": {ID: "agent-1", Role: identity.RoleAgent, DisplayName: "Ravi", Email: "ravi@example.com"},
	}}
}

const receiptPayload = `{"payment_id":"p1","loan_id":"loan-1","borrower_name":"Asha","borrower_email":"asha@example.com","amount_minor":400000,"method":"cash","transaction_id":"TXN1","outstanding_minor":600000,"loan_status":"in_recovery"}`

func TestWorkerDeliversPaymentReceipt(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 1, Topic: paymentReceiptTopic, Attempts: 1, Payload: []byte(receiptPayload)}}}
	sender := &fakeSender{}
	worker := NewWorker(outbox, newDirectory(), sender, nil)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.doneIDs) != 1 || outbox.doneIDs[0] != 1 {
		t.Fatalf("expected job marked done")
	}
	if len(sender.sent) != 1 || sender.sent[0].To[0] != "asha@example.com" {
		t.Fatalf("expected receipt to borrower, got %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Text, "4000.00") || !strings.Contains(sender.sent[0].Text, "6000.00") {
		t.Fatalf("expected amounts in receipt body: %s", sender.sent[0].Text)
	}
}

func TestWorkerDeliversAssignmentNotice(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 2, Topic: loanAssignedTopic, Attempts: 1, Payload: []byte(`{"loan_id":"loan-1","agent_id":"agent-1","borrower_name":"Asha"}`)}}}
	sender := &fakeSender{}
	worker := NewWorker(outbox, newDirectory(), sender, nil)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.doneIDs) != 1 {
		t.Fatalf("expected job marked done")
	}
	if len(sender.sent) != 1 || sender.sent[0].To[0] != "ravi@example.com" {
		t.Fatalf("expected notice to agent, got %+v", sender.sent)
	}
}

func TestWorkerRunOnceRetryOnSendError(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 1, Topic: paymentReceiptTopic, Attempts: 1, Payload: []byte(receiptPayload)}}}
	worker := NewWorker(outbox, newDirectory(), &fakeSender{err: errors.New("smtp down")}, nil)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.retryIDs) != 1 || outbox.retryIDs[0] != 1 {
		t.Fatalf("expected job marked retry")
	}
}

func TestWorkerRunOnceTerminalFailure(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 9, Topic: loanAssignedTopic, Attempts: 5, Payload: []byte(`{"loan_id":"loan-1","agent_id":"missing"}`)}}}
	worker := NewWorker(outbox, newDirectory(), &fakeSender{}, nil)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.failedIDs) != 1 || outbox.failedIDs[0] != 9 {
		t.Fatalf("expected job marked failed")
	}
	if outbox.lastError != "user_not_found" {
		t.Fatalf("unexpected last error %q", outbox.lastError)
	}
}

func TestWorkerUnsupportedTopicRetries(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 3, Topic: "register_loan", Attempts: 1, Payload: []byte(`{}`)}}}
	worker := NewWorker(outbox, newDirectory(), &fakeSender{}, nil)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.retryIDs) != 1 || outbox.lastError != "unsupported_topic" {
		t.Fatalf("expected unsupported topic retry, got %+v", outbox)
	}
}

func TestWorkerReceiptWithoutEmailIsDone(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 4, Topic: paymentReceiptTopic, Attempts: 1, Payload: []byte(`{"payment_id":"p1","borrower_email":""}`)}}}
	sender := &fakeSender{}
	worker := NewWorker(outbox, newDirectory(), sender, nil)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.doneIDs) != 1 || len(sender.sent) != 0 {
		t.Fatalf("expected done without send")
	}
}

func TestWorkerSettlesEveryClaimedJobWhenBatchTimesOut(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{
		{ID: 1, Topic: paymentReceiptTopic, Attempts: 1, Payload: []byte(receiptPayload)},
		{ID: 2, Topic: paymentReceiptTopic, Attempts: 1, Payload: []byte(receiptPayload)},
		{ID: 3, Topic: loanAssignedTopic, Attempts: 1, Payload: []byte(`{"loan_id":"loan-1","agent_id":"agent-1"}`)},
	}}
	sender := &stallingSender{}
	worker := NewWorker(outbox, newDirectory(), sender, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := worker.RunOnce(ctx, 10); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if sender.calls != 1 {
		t.Fatalf("expected only the first job to reach the sender, got %d", sender.calls)
	}
	if len(outbox.retryIDs) != 3 || len(outbox.doneIDs) != 0 || len(outbox.failedIDs) != 0 {
		t.Fatalf("expected every claimed job handed back for retry, got %+v", outbox)
	}
	for i, err := range outbox.markErrs {
		if err != nil {
			t.Fatalf("mark call %d ran on a finished context: %v", i, err)
		}
	}
}
