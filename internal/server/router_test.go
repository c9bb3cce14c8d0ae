package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/auth"
	"github.com/loanrecovery/backend/internal/config"
	"github.com/loanrecovery/backend/internal/db"
	admindomain "github.com/loanrecovery/backend/internal/domain/admin"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	paymentdomain "github.com/loanrecovery/backend/internal/domain/payment"
	"github.com/loanrecovery/backend/internal/domain/settlement"
	"github.com/loanrecovery/backend/internal/gateway"
	"github.com/loanrecovery/backend/internal/http/handlers"
	"github.com/loanrecovery/backend/internal/report"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(_ context.Context) error {
	return p.err
}

// memBackend stands in for postgres across users, loans and payments.
type memBackend struct {
	mu       sync.Mutex
	users    map[string]*db.User
	sessions map[string]*db.Session
	loans    map[string]loandomain.Entity
	order    []string
	payments []paymentdomain.Entity
	audits   []admindomain.AuditLogInput
	seq      int
}

func newMemBackend() *memBackend {
	return &memBackend{
		users:    map[string]*db.User{},
		sessions: map[string]*db.Session{},
		loans:    map[string]loandomain.Entity{},
	}
}

func (m *memBackend) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memBackend) CreateUser(_ context.Context, in db.CreateUserInput) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return nil, errs.Conflict("email_taken")
		}
	}
	u := &db.User{ID: m.nextID("user"), Email: in.Email, PasswordHash: in.PasswordHash, Name: in.Name, Role: in.Role, AgentCode: in.AgentCode}
	m.users[u.ID] = u
	return u, nil
}

func (m *memBackend) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errs.NotFound("user_not_found")
}

func (m *memBackend) GetUserByID(_ context.Context, id string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errs.NotFound("user_not_found")
}

func (m *memBackend) CreateSession(_ context.Context, userID, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &db.Session{ID: m.nextID("session"), UserID: userID, UserAgent: userAgent, IPAddress: ipAddress, ExpiresAt: expiresAt}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memBackend) GetSessionByID(_ context.Context, id string) (*db.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, errs.NotFound("session_not_found")
}

func (m *memBackend) RevokeSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (m *memBackend) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	u, err := m.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := u.Identity()
	return &out, nil
}

func (m *memBackend) FindByRole(_ context.Context, role identity.Role) ([]identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []identity.Identity{}
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u.Identity())
		}
	}
	return out, nil
}

func (m *memBackend) Create(_ context.Context, in loandomain.CreateInput) (*loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := loandomain.Entity{
		ID:               m.nextID("loan"),
		BorrowerName:     in.BorrowerName,
		BorrowerEmail:    in.BorrowerEmail,
		BorrowerPhone:    in.BorrowerPhone,
		BorrowerAddress:  in.BorrowerAddress,
		PrincipalMinor:   in.PrincipalMinor,
		OutstandingMinor: in.PrincipalMinor,
		IssuedDate:       in.IssuedDate,
		DueDate:          in.DueDate,
		Status:           loandomain.StatusPending,
		CreatedBy:        in.CreatedBy,
	}
	m.loans[e.ID] = e
	m.order = append([]string{e.ID}, m.order...)
	return &e, nil
}

func (m *memBackend) GetByID(_ context.Context, id string) (*loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.loans[id]; ok {
		return &e, nil
	}
	return nil, errs.NotFound("loan_not_found")
}

func (m *memBackend) List(_ context.Context, f loandomain.ListFilter) ([]loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []loandomain.Entity{}
	for _, id := range m.order {
		e := m.loans[id]
		if f.AssignedAgentID != "" && !e.AssignedTo(f.AssignedAgentID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memBackend) Assign(_ context.Context, loanID, agentID string, status loandomain.Status) (*loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.loans[loanID]
	if !ok || e.Status.Terminal() {
		return nil, errs.NotFound("loan_not_found")
	}
	id := agentID
	e.AssignedAgentID = &id
	e.Status = status
	m.loans[loanID] = e
	return &e, nil
}

func (m *memBackend) Enqueue(_ context.Context, _ string, _ []byte) error { return nil }

func (m *memBackend) Settle(_ context.Context, loanID string, fn paymentdomain.SettleFunc, _ func(paymentdomain.SettleResult) []paymentdomain.OutboxMessage) (*paymentdomain.SettleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.loans[loanID]
	if !ok {
		return nil, errs.NotFound("loan_not_found")
	}
	in, next, err := fn(current)
	if err != nil {
		return nil, err
	}
	p := paymentdomain.Entity{
		ID:             m.nextID("payment"),
		LoanID:         in.LoanID,
		AmountMinor:    in.AmountMinor,
		Method:         in.Method,
		TransactionID:  in.TransactionID,
		UPIID:          in.UPIID,
		CollectedBy:    in.CollectedBy,
		CollectionDate: in.CollectionDate,
		Status:         paymentdomain.StatusCompleted,
	}
	m.payments = append([]paymentdomain.Entity{p}, m.payments...)
	m.loans[loanID] = next
	return &paymentdomain.SettleResult{Payment: p, Loan: next}, nil
}

func (m *memBackend) ListByLoan(_ context.Context, loanID string) ([]paymentdomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []paymentdomain.Entity{}
	for _, p := range m.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memBackend) ListByCollector(_ context.Context, collectorID string) ([]paymentdomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []paymentdomain.Entity{}
	for _, p := range m.payments {
		if p.CollectedBy == collectorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memBackend) SumCompletedByLoan(_ context.Context, loanID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, p := range m.payments {
		if p.LoanID == loanID {
			total += p.AmountMinor
		}
	}
	return total, nil
}

func (m *memBackend) Ping(_ context.Context) error { return nil }

func (m *memBackend) Stats(_ context.Context) (*admindomain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &admindomain.Stats{Loans: int64(len(m.loans)), Payments: int64(len(m.payments))}, nil
}

func (m *memBackend) Log(_ context.Context, in admindomain.AuditLogInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, in)
	return nil
}

func (m *memBackend) Recent(_ context.Context, limit int32) ([]admindomain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]admindomain.AuditEntry, 0)
	for i := len(m.audits) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		out = append(out, admindomain.AuditEntry{ID: int64(i + 1), ActorID: m.audits[i].ActorID, Action: m.audits[i].Action})
	}
	return out, nil
}

type testAPI struct {
	t       *testing.T
	router  *gin.Engine
	backend *memBackend
}

func newTestAPI(t *testing.T, charger gateway.Charger) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newMemBackend()
	jwtManager := auth.NewJWTManager("issuer", "aud", "super-secret")
	authService := auth.NewService(backend, jwtManager, time.Hour)
	loanService := loandomain.NewService(backend, backend, backend, slog.Default())
	settlementService := settlement.NewService(backend, backend, charger, slog.Default())
	adminService := admindomain.NewService(backend, backend, backend, slog.Default())

	cfg := config.Config{Env: "test", AuthEnableBearer: true, RequestBodyLimit: 1 << 20}
	r := NewRouter(cfg, slog.Default(), Dependencies{
		Pinger:         fakePinger{},
		AuthHandler:    handlers.NewAuthHandler(authService, auth.CookieConfig{}, time.Hour),
		LoanHandler:    handlers.NewLoanHandler(loanService, settlementService),
		PaymentHandler: handlers.NewPaymentHandler(settlementService),
		AdminHandler:   handlers.NewAdminHandler(adminService),
		JWTManager:     jwtManager,
		Sessions:       authService,
	})
	return &testAPI{t: t, router: r, backend: backend}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) register(name, email, role string) (string, string) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"name": name, "email": email, "password": "secret1", "role": role})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("register %s: expected 201, got %d %s", email, w.Code, w.Body.String())
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(a.t, w, &out)
	return out.Token, out.User.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decode(t, w, &out)
	return out.Error
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(config.Config{Env: "test"}, slog.Default(), Dependencies{Pinger: fakePinger{}})

	for _, path := range []string{"/health", "/ready", "/v1/meta"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/meta", nil))
	var meta handlers.Meta
	decode(t, w, &meta)
	if meta.Currency != "INR" || len(meta.PaymentMethods) != 2 || len(meta.LoanStatuses) != 5 {
		t.Fatalf("unexpected meta %+v", meta)
	}

	down := NewRouter(config.Config{Env: "test"}, slog.Default(), Dependencies{Pinger: fakePinger{err: errors.New("db down")}})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound || errorCode(t, w) != "not_found" {
		t.Fatalf("expected not_found, got %d %s", w.Code, w.Body.String())
	}
}

func TestRecoveryLifecycle(t *testing.T) {
	api := newTestAPI(t, gateway.NewSimulator(0, 1))
	bankToken, _ := api.register("HQ", "hq@bank.in", "bank")
	agentToken, agentID := api.register("Asha", "asha@bank.in", "agent")
	otherToken, _ := api.register("Ravi", "ravi@bank.in", "agent")

	w := api.do(http.MethodPost, "/v1/loans", bankToken, map[string]any{
		"borrower_name":    "Meera Shah",
		"borrower_email":   "meera@example.com",
		"borrower_phone":   "9876543210",
		"borrower_address": "12 MG Road, Pune",
		"amount":           "10000",
		"issued_date":      "2026-01-01",
		"due_date":         "2026-07-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create loan: expected 201, got %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		OutstandingMinor int64  `json:"outstanding_minor"`
	}
	decode(t, w, &created)
	if created.Status != "pending" || created.OutstandingMinor != 1000000 {
		t.Fatalf("unexpected created loan: %+v", created)
	}

	if w := api.do(http.MethodPost, "/v1/loans", agentToken, map[string]any{}); w.Code != http.StatusForbidden {
		t.Fatalf("agent creating loan: expected 403, got %d", w.Code)
	}

	w = api.do(http.MethodPut, "/v1/loans/"+created.ID+"/assign", bankToken, map[string]string{"agent_id": agentID})
	if w.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d %s", w.Code, w.Body.String())
	}

	if w := api.do(http.MethodGet, "/v1/loans/"+created.ID, otherToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign agent get: expected 404, got %d", w.Code)
	}
	w = api.do(http.MethodGet, "/v1/loans", otherToken, nil)
	var list struct {
		Items []json.RawMessage `json:"items"`
	}
	decode(t, w, &list)
	if len(list.Items) != 0 {
		t.Fatalf("foreign agent should see no loans, got %d", len(list.Items))
	}

	w = api.do(http.MethodPost, "/v1/payments", agentToken, map[string]any{"loan_id": created.ID, "amount": 4000, "payment_method": "cash"})
	if w.Code != http.StatusCreated {
		t.Fatalf("cash payment: expected 201, got %d %s", w.Code, w.Body.String())
	}
	var paid struct {
		RemainingMinor int64  `json:"remaining_amount_minor"`
		LoanStatus     string `json:"loan_status"`
	}
	decode(t, w, &paid)
	if paid.RemainingMinor != 600000 || paid.LoanStatus != "in_recovery" {
		t.Fatalf("unexpected payment result: %+v", paid)
	}

	w = api.do(http.MethodPost, "/v1/payments", agentToken, map[string]any{"loan_id": created.ID, "amount": 7000, "payment_method": "cash"})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "amount_exceeds_outstanding" {
		t.Fatalf("over-payment: expected 400 amount_exceeds_outstanding, got %d %s", w.Code, w.Body.String())
	}

	w = api.do(http.MethodPost, "/v1/payments", agentToken, map[string]any{"loan_id": created.ID, "amount": "6000.00", "payment_method": "upi", "upi_id": "meera@okaxis"})
	if w.Code != http.StatusCreated {
		t.Fatalf("upi payment: expected 201, got %d %s", w.Code, w.Body.String())
	}
	decode(t, w, &paid)
	if paid.RemainingMinor != 0 || paid.LoanStatus != "recovered" {
		t.Fatalf("expected recovered, got %+v", paid)
	}

	w = api.do(http.MethodGet, "/v1/payments/loan/"+created.ID, bankToken, nil)
	decode(t, w, &list)
	if w.Code != http.StatusOK || len(list.Items) != 2 {
		t.Fatalf("expected two payments, got %d %s", w.Code, w.Body.String())
	}

	w = api.do(http.MethodGet, "/v1/payments/stats", agentToken, nil)
	var stats struct {
		TotalPayments    int64            `json:"total_payments"`
		TotalAmountMinor int64            `json:"total_amount_minor"`
		Recent           []map[string]any `json:"recent_payments"`
	}
	decode(t, w, &stats)
	if stats.TotalPayments != 2 || stats.TotalAmountMinor != 1000000 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.Recent) != 2 {
		t.Fatalf("expected 2 recent payments, got %+v", stats.Recent)
	}
	// recent payments carry the same decimal amount as the loan history
	if got := fmt.Sprint(stats.Recent[0]["amount"]); got != "6000" {
		t.Fatalf("expected newest recent payment amount 6000, got %q", got)
	}

	w = api.do(http.MethodGet, "/v1/loans/"+created.ID+"/ledger", bankToken, nil)
	var ledger settlement.LedgerCheck
	decode(t, w, &ledger)
	if !ledger.Consistent || ledger.CollectedMinor != 1000000 {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
}

func TestPaymentGatewayFailureMapsTo402(t *testing.T) {
	api := newTestAPI(t, gateway.NewSimulator(0, 0))
	agentToken, agentID := api.register("Asha", "asha@bank.in", "agent")

	loan, _ := api.backend.Create(context.Background(), loandomain.CreateInput{BorrowerName: "M", PrincipalMinor: 1000})
	_, _ = api.backend.Assign(context.Background(), loan.ID, agentID, loandomain.StatusAssigned)

	w := api.do(http.MethodPost, "/v1/payments", agentToken, map[string]any{"loan_id": loan.ID, "amount": 5, "payment_method": "upi", "upi_id": "a@bc"})
	if w.Code != http.StatusPaymentRequired || errorCode(t, w) != "payment_failed_retry" {
		t.Fatalf("expected 402 payment_failed_retry, got %d %s", w.Code, w.Body.String())
	}
	if len(api.backend.payments) != 0 {
		t.Fatalf("failed charge must not create a payment")
	}

	w = api.do(http.MethodPost, "/v1/payments/upi/process", agentToken, map[string]any{"amount": 5, "upi_id": "a@bc"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("preview failure: expected 402, got %d", w.Code)
	}
}

func TestPaymentRequestValidation(t *testing.T) {
	api := newTestAPI(t, gateway.NewSimulator(0, 1))
	agentToken, _ := api.register("Asha", "asha@bank.in", "agent")

	cases := []struct {
		body map[string]any
		code string
	}{
		{map[string]any{"loan_id": "x", "amount": 0, "payment_method": "cash"}, "amount_must_be_positive"},
		{map[string]any{"loan_id": "x", "amount": "1.001", "payment_method": "cash"}, "amount_too_precise"},
		{map[string]any{"loan_id": "x", "amount": 1, "payment_method": "cheque"}, "invalid_payment_method"},
		{map[string]any{"loan_id": "x", "amount": 1, "payment_method": "upi", "upi_id": "ab"}, "invalid_upi_id"},
	}
	for _, tc := range cases {
		w := api.do(http.MethodPost, "/v1/payments", agentToken, tc.body)
		if w.Code != http.StatusBadRequest || errorCode(t, w) != tc.code {
			t.Fatalf("expected 400 %s, got %d %s", tc.code, w.Code, w.Body.String())
		}
	}

	w := api.do(http.MethodPost, "/v1/payments", agentToken, map[string]any{"loan_id": "missing", "amount": 1, "payment_method": "cash"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing loan: expected 404, got %d", w.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t, gateway.NewSimulator(0, 1))
	token, _ := api.register("HQ", "hq@bank.in", "bank")

	w := api.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"name": "HQ2", "email": "hq@bank.in", "password": "secret1", "role": "bank"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", w.Code)
	}

	w = api.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "hq@bank.in", "password": "nope123"})
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "invalid_credentials" {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = api.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "hq@bank.in", "password": "secret1"})
	if w.Code != http.StatusOK || len(w.Result().Cookies()) == 0 {
		t.Fatalf("login: expected 200 with cookie, got %d", w.Code)
	}

	if w := api.do(http.MethodGet, "/v1/auth/me", token, nil); w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/auth/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", w.Code)
	}

	if w := api.do(http.MethodPost, "/v1/auth/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/auth/me", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, gateway.NewSimulator(0, 1))
	bankToken, _ := api.register("HQ", "hq@bank.in", "bank")
	agentToken, _ := api.register("Asha", "asha@bank.in", "agent")

	if w := api.do(http.MethodGet, "/v1/admin/stats", agentToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("agent admin stats: expected 403, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/admin/health", bankToken, nil); w.Code != http.StatusOK {
		t.Fatalf("admin health: expected 200, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/admin/stats", bankToken, nil); w.Code != http.StatusOK {
		t.Fatalf("admin stats: expected 200, got %d", w.Code)
	}

	w := api.do(http.MethodGet, "/v1/admin/loans/export", bankToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != report.LoanBookContentType {
		t.Fatalf("export: expected xlsx, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if len(api.backend.audits) != 1 {
		t.Fatalf("expected export to be audited")
	}

	w = api.do(http.MethodGet, "/v1/admin/audit?limit=10", bankToken, nil)
	var trail struct {
		Items []admindomain.AuditEntry `json:"items"`
	}
	decode(t, w, &trail)
	if len(trail.Items) != 1 || trail.Items[0].Action != "loan_book_exported" {
		t.Fatalf("expected export in audit trail, got %+v", trail.Items)
	}
	if w := api.do(http.MethodGet, "/v1/admin/audit?limit=zero", bankToken, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}

	w = api.do(http.MethodGet, "/v1/agents", bankToken, nil)
	var agents struct {
		Items []identity.Identity `json:"items"`
	}
	decode(t, w, &agents)
	if len(agents.Items) != 1 || agents.Items[0].AgentCode == "" {
		t.Fatalf("expected one agent with a code, got %+v", agents.Items)
	}
}
