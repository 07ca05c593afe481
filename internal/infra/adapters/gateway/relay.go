// File: internal/infra/adapters/gateway/relay.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RelayGateway)(nil)

// usedRetention bounds how long opened order ids are remembered for reuse checks.
const usedRetention = 24 * time.Hour

// RelayGateway bridges a browser-owned gateway UI. The browser receives the
// session options, runs the gateway checkout and posts its handler payloads
// back, which Deliver routes to the waiting session.
type RelayGateway struct {
	name  string
	brand Branding
	log   *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session  // order id -> live session
	used     map[string]time.Time // order id -> first opened
}

func NewRelayGateway(name string, brand Branding, logger *zerolog.Logger) *RelayGateway {
	l := logger.With().Str("component", "RelayGateway").Logger()
	return &RelayGateway{
		name:     name,
		brand:    brand,
		log:      &l,
		sessions: make(map[string]*session),
		used:     make(map[string]time.Time),
	}
}

func (g *RelayGateway) Name() string { return g.name }

func (g *RelayGateway) Open(ctx context.Context, req adapter.GatewayRequest) (adapter.GatewaySession, error) {
	return g.open(req)
}

func (g *RelayGateway) open(req adapter.GatewayRequest) (*session, error) {
	oid := req.Order.OrderID
	if oid == "" {
		return nil, domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, live := g.sessions[oid]; live {
		return nil, domain.ErrGatewayBusy
	}
	if _, seen := g.used[oid]; seen {
		return nil, fmt.Errorf("order %s: %w", oid, domain.ErrOrderHandleReused)
	}
	now := time.Now()
	g.pruneLocked(now)

	var s *session
	s = newSession(uuid.NewString(), BuildOptions(req, g.brand), func() {
		g.mu.Lock()
		if g.sessions[oid] == s {
			delete(g.sessions, oid)
		}
		g.mu.Unlock()
	})
	s.start()
	g.sessions[oid] = s
	g.used[oid] = now
	g.log.Debug().Str("order_id", oid).Str("session_id", s.id).Msg("gateway session opened")
	return s, nil
}

func (g *RelayGateway) pruneLocked(now time.Time) {
	for oid, at := range g.used {
		if now.Sub(at) > usedRetention {
			delete(g.used, oid)
		}
	}
}

// Session returns the live session for an order id.
func (g *RelayGateway) Session(orderID string) (adapter.GatewaySession, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[orderID]
	return s, ok
}

// Callback is what the browser posts when a gateway handler fires.
type Callback struct {
	OrderID   string          `json:"order_id"`
	SessionID string          `json:"session_id"`
	Event     string          `json:"event"` // success|failed|dismiss
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SuccessPayload is the gateway success handler argument.
type SuccessPayload struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// FailurePayload is the gateway payment.failed event body.
type FailurePayload struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Reason      string `json:"reason"`
		Metadata    struct {
			OrderID   string `json:"order_id"`
			PaymentID string `json:"payment_id"`
		} `json:"metadata"`
	} `json:"error"`
}

// Result maps the callback into a PaymentResult.
func (c Callback) Result() (model.PaymentResult, error) {
	switch c.Event {
	case "success":
		var p SuccessPayload
		if err := json.Unmarshal(c.Payload, &p); err != nil {
			return model.PaymentResult{}, fmt.Errorf("success payload: %w", domain.ErrInvalidArgument)
		}
		if p.PaymentID == "" || p.OrderID == "" || p.Signature == "" {
			return model.PaymentResult{}, fmt.Errorf("success payload incomplete: %w", domain.ErrInvalidArgument)
		}
		return model.PaymentResult{Status: model.PaymentSucceeded, OrderID: p.OrderID, PaymentID: p.PaymentID, Signature: p.Signature}, nil
	case "failed":
		var p FailurePayload
		if len(c.Payload) > 0 {
			if err := json.Unmarshal(c.Payload, &p); err != nil {
				return model.PaymentResult{}, fmt.Errorf("failure payload: %w", domain.ErrInvalidArgument)
			}
		}
		oid := p.Error.Metadata.OrderID
		if oid == "" {
			oid = c.OrderID
		}
		return model.PaymentResult{
			Status:        model.PaymentFailed,
			OrderID:       oid,
			PaymentID:     p.Error.Metadata.PaymentID,
			FailureCode:   p.Error.Code,
			FailureReason: p.Error.Description,
		}, nil
	case "dismiss":
		return model.PaymentResult{Status: model.PaymentDismissed, OrderID: c.OrderID}, nil
	}
	return model.PaymentResult{}, fmt.Errorf("event %q: %w", c.Event, domain.ErrInvalidArgument)
}

// Deliver routes a browser callback to its session. Callbacks for unknown,
// closed or superseded sessions, or naming another order, are ErrStaleCallback.
func (g *RelayGateway) Deliver(ctx context.Context, cb Callback) error {
	res, err := cb.Result()
	if err != nil {
		return err
	}
	g.mu.Lock()
	s, ok := g.sessions[cb.OrderID]
	g.mu.Unlock()
	if !ok || s.id != cb.SessionID || res.OrderID != s.orderID {
		metrics.IncStaleCallback()
		g.log.Warn().Str("order_id", cb.OrderID).Str("session_id", cb.SessionID).Str("event", cb.Event).Msg("stale gateway callback")
		return domain.ErrStaleCallback
	}
	if err := s.deliver(res); err != nil {
		metrics.IncStaleCallback()
		return err
	}
	return nil
}
