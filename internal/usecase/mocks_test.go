//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// callLog records the order of collaborator calls across mocks.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(prefix string) int {
	n := 0
	for _, c := range l.list() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// ---- Mock PlanSource ----

type MockPlanSource struct {
	mu    sync.Mutex
	Plans []*model.Plan
	Err   error
	Calls int
}

var _ adapter.PlanSource = (*MockPlanSource)(nil)

func (m *MockPlanSource) ListActivePlans(ctx context.Context) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Plans, nil
}

// ---- Mock OrderAPI ----

type MockOrderAPI struct {
	log *callLog
	mu  sync.Mutex
	seq int

	CreateOrderFunc func(ctx context.Context, req adapter.OrderRequest) (model.OrderHandle, error)
}

var _ adapter.OrderAPI = (*MockOrderAPI)(nil)

func (m *MockOrderAPI) CreateOrder(ctx context.Context, req adapter.OrderRequest) (model.OrderHandle, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	if m.log != nil {
		m.log.add("create_order:%s", req.Plan.ID)
	}
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return model.OrderHandle{OrderID: fmt.Sprintf("order_%d", seq), Amount: req.Plan.Price * 100, Currency: "INR", Key: "rzp_test"}, nil
}

// ---- Mock VerificationAPI ----

type MockVerifyAPI struct {
	log *callLog

	VerifyPaymentFunc func(ctx context.Context, req adapter.VerifyRequest) (adapter.VerifyResponse, error)
}

var _ adapter.VerificationAPI = (*MockVerifyAPI)(nil)

func (m *MockVerifyAPI) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) (adapter.VerifyResponse, error) {
	if m.log != nil {
		m.log.add("verify:%s:%s", req.Order.OrderID, req.Result.OrderID)
	}
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, req)
	}
	return adapter.VerifyResponse{Message: "ok", Reference: "pur_1"}, nil
}

// ---- Mock PaymentGateway ----

// MockGateway opens sessions whose results come from Script, in order.
type MockGateway struct {
	log *callLog

	mu       sync.Mutex
	Script   []model.PaymentResult // "{order}" in OrderID is replaced with the session's order id
	Hold     bool                  // when set, Await blocks until ctx is done
	OpenErr  error
	Sessions []*MockSession
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Open(ctx context.Context, req adapter.GatewayRequest) (adapter.GatewaySession, error) {
	if g.log != nil {
		g.log.add("gateway_open:%s", req.Order.OrderID)
	}
	if g.OpenErr != nil {
		return nil, g.OpenErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]model.PaymentResult, len(g.Script))
	for i, r := range g.Script {
		if r.OrderID == "{order}" {
			r.OrderID = req.Order.OrderID
		}
		results[i] = r
	}
	s := &MockSession{id: fmt.Sprintf("sess_%d", len(g.Sessions)+1), orderID: req.Order.OrderID, results: results, hold: g.Hold, log: g.log}
	g.Sessions = append(g.Sessions, s)
	return s, nil
}

func (g *MockGateway) session(i int) *MockSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Sessions[i]
}

type MockSession struct {
	id, orderID string
	log         *callLog
	hold        bool

	mu      sync.Mutex
	results []model.PaymentResult
	closed  bool
}

var _ adapter.GatewaySession = (*MockSession)(nil)

func (s *MockSession) ID() string      { return s.id }
func (s *MockSession) OrderID() string { return s.orderID }
func (s *MockSession) Options() model.GatewayOptions {
	return model.GatewayOptions{OrderID: s.orderID, Key: "rzp_test"}
}

func (s *MockSession) Await(ctx context.Context) (model.PaymentResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.PaymentResult{}, domain.ErrGatewaySessionClosed
	}
	if !s.hold && len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		s.mu.Unlock()
		if s.log != nil {
			s.log.add("gateway_result:%s:%s", r.Status, r.OrderID)
		}
		return r, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return model.PaymentResult{}, ctx.Err()
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.log != nil {
		s.log.add("gateway_close:%s", s.orderID)
	}
	return nil
}

func (s *MockSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ---- Scripted prompters ----

// ScriptedDetails answers prompts from Inputs in order, then reports cancel.
type ScriptedDetails struct {
	mu      sync.Mutex
	Inputs  []adapter.DetailsInput
	Prompts []adapter.DetailsPrompt
	Block   bool // block until ctx is done instead of answering
}

var _ adapter.DetailsPrompter = (*ScriptedDetails)(nil)

func (p *ScriptedDetails) PromptDetails(ctx context.Context, q adapter.DetailsPrompt) (adapter.DetailsInput, error) {
	p.mu.Lock()
	p.Prompts = append(p.Prompts, q)
	if p.Block || len(p.Inputs) == 0 {
		block := p.Block
		p.mu.Unlock()
		if block {
			<-ctx.Done()
			return adapter.DetailsInput{}, ctx.Err()
		}
		return adapter.DetailsInput{}, domain.ErrCancelled
	}
	in := p.Inputs[0]
	p.Inputs = p.Inputs[1:]
	p.mu.Unlock()
	return in, nil
}

func (p *ScriptedDetails) prompts() []adapter.DetailsPrompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]adapter.DetailsPrompt(nil), p.Prompts...)
}

type ScriptedMethods struct {
	mu      sync.Mutex
	Inputs  []adapter.MethodInput
	Prompts []adapter.MethodPrompt
}

var _ adapter.MethodPrompter = (*ScriptedMethods)(nil)

func (p *ScriptedMethods) PromptMethod(ctx context.Context, q adapter.MethodPrompt) (adapter.MethodInput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, q)
	if len(p.Inputs) == 0 {
		return adapter.MethodInput{}, domain.ErrCancelled
	}
	in := p.Inputs[0]
	p.Inputs = p.Inputs[1:]
	return in, nil
}

// ---- Mock CustomerCache ----

type MockCustomerCache struct {
	mu      sync.Mutex
	store   map[string]model.CustomerDetails
	LoadErr error
	SaveErr error
	Saves   int
}

var _ repository.CustomerCache = (*MockCustomerCache)(nil)

func NewMockCustomerCache() *MockCustomerCache {
	return &MockCustomerCache{store: map[string]model.CustomerDetails{}}
}

func (m *MockCustomerCache) Load(ctx context.Context, purchaserID string) (model.CustomerDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return model.CustomerDetails{}, m.LoadErr
	}
	d, ok := m.store[purchaserID]
	if !ok {
		return model.CustomerDetails{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *MockCustomerCache) Save(ctx context.Context, purchaserID string, d model.CustomerDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.store[purchaserID] = d
	return nil
}

// ---- Mock AttemptRepository ----

type MockAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt
	SaveErr  error
}

var _ repository.AttemptRepository = (*MockAttemptRepo)(nil)

func NewMockAttemptRepo() *MockAttemptRepo {
	return &MockAttemptRepo{attempts: map[string]*model.Attempt{}}
}

func (m *MockAttemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.attempts[a.ID] = a.Snapshot()
	return nil
}

func (m *MockAttemptRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Snapshot(), nil
}

func (m *MockAttemptRepo) ListCompletedByPurchaser(ctx context.Context, tx repository.Tx, purchaserID string, limit int) ([]*model.PurchaseOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PurchaseOutcome
	for _, a := range m.attempts {
		if a.PurchaserID == purchaserID && a.Outcome != nil {
			o := *a.Outcome
			out = append(out, &o)
		}
	}
	return out, nil
}

func (m *MockAttemptRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	Calls      int
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
	Err  error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return "", l.Err
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrCheckoutInProgress
	}
	l.seq++
	tok := fmt.Sprintf("tok-%d", l.seq)
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *MockLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func (r *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[key]++
	return r.counts[key] <= limit, nil
}
