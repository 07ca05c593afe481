package gateway

import (
	"context"
	"sync"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
)

// SessionState is the lifecycle of one gateway invocation.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionAwaiting  SessionState = "awaiting_user_input"
	SessionSucceeded SessionState = "succeeded"
	SessionFailed    SessionState = "failed"
	SessionDismissed SessionState = "dismissed"
)

var _ adapter.GatewaySession = (*session)(nil)

// session is a single payment session bound to one order handle. The first
// terminal result wins; anything later is stale.
type session struct {
	id      string
	orderID string
	opts    model.GatewayOptions

	mu      sync.Mutex
	state   SessionState
	results chan model.PaymentResult // cap 1, written once

	closed    chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newSession(id string, opts model.GatewayOptions, onClose func()) *session {
	return &session{
		id:      id,
		orderID: opts.OrderID,
		opts:    opts,
		state:   SessionIdle,
		results: make(chan model.PaymentResult, 1),
		closed:  make(chan struct{}),
		onClose: onClose,
	}
}

func (s *session) ID() string                    { return s.id }
func (s *session) OrderID() string               { return s.orderID }
func (s *session) Options() model.GatewayOptions { return s.opts }

func (s *session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) start() {
	s.mu.Lock()
	s.state = SessionAwaiting
	s.mu.Unlock()
}

func (s *session) Await(ctx context.Context) (model.PaymentResult, error) {
	select {
	case r := <-s.results:
		return r, nil
	default:
	}
	select {
	case r := <-s.results:
		return r, nil
	case <-s.closed:
		return model.PaymentResult{}, domain.ErrGatewaySessionClosed
	case <-ctx.Done():
		return model.PaymentResult{}, ctx.Err()
	}
}

// deliver records the terminal result. It fails with ErrStaleCallback once
// the session has ended or been torn down.
func (s *session) deliver(r model.PaymentResult) error {
	select {
	case <-s.closed:
		return domain.ErrStaleCallback
	default:
	}
	if r.OrderID != s.orderID {
		return domain.ErrStaleCallback
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionAwaiting {
		return domain.ErrStaleCallback
	}
	switch r.Status {
	case model.PaymentSucceeded:
		s.state = SessionSucceeded
	case model.PaymentFailed:
		s.state = SessionFailed
	case model.PaymentDismissed:
		s.state = SessionDismissed
	default:
		return domain.ErrInvalidArgument
	}
	s.results <- r
	return nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// Branding is the merchant copy shown inside the gateway UI.
type Branding struct {
	Name        string
	Description string
	ThemeColor  string
}

// BuildOptions maps an order handle to the gateway checkout options.
func BuildOptions(req adapter.GatewayRequest, b Branding) model.GatewayOptions {
	desc := b.Description
	if desc == "" {
		desc = req.Plan.Name + " membership"
	}
	notes := map[string]string{
		"plan_id":        req.Plan.ID,
		"attempt_id":     req.AttemptID,
		"payment_method": string(req.Method.Kind),
	}
	if req.Method.IsUPI() {
		notes["upi_id"] = req.Method.UPIID
	}
	return model.GatewayOptions{
		Key:         req.Order.Key,
		Amount:      req.Order.Amount,
		Currency:    req.Order.Currency,
		OrderID:     req.Order.OrderID,
		Name:        b.Name,
		Description: desc,
		Prefill: model.GatewayPrefill{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Contact: req.Customer.Phone,
		},
		Notes: notes,
		Theme: model.GatewayTheme{Color: b.ThemeColor},
	}
}
