package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// Sign computes the gateway success signature:
// hex(HMAC-SHA256(secret, order_id + "|" + payment_id)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a success signature in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, orderID, paymentID)), []byte(signature))
}

// SandboxGateway plays a scripted outcome against every session it opens.
// It is meant for dev and tests.
type SandboxGateway struct {
	relay   *RelayGateway
	secret  string
	outcome string // success|failed|dismiss
	delay   time.Duration

	mu  sync.Mutex
	seq int64
}

func NewSandboxGateway(secret, outcome string, delay time.Duration, brand Branding, logger *zerolog.Logger) *SandboxGateway {
	return &SandboxGateway{
		relay:   NewRelayGateway("sandbox", brand, logger),
		secret:  secret,
		outcome: outcome,
		delay:   delay,
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("pay_sandbox_%d", g.seq)
}

func (g *SandboxGateway) Open(ctx context.Context, req adapter.GatewayRequest) (adapter.GatewaySession, error) {
	s, err := g.relay.open(req)
	if err != nil {
		return nil, err
	}
	cb := g.script(s)
	go func() {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-t.C:
			_ = g.relay.Deliver(context.Background(), cb)
		case <-s.closed:
		}
	}()
	return s, nil
}

func (g *SandboxGateway) script(s *session) Callback {
	cb := Callback{OrderID: s.orderID, SessionID: s.id, Event: g.outcome}
	switch g.outcome {
	case "failed":
		cb.Payload = []byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Payment declined by sandbox","reason":"payment_failed"}}`)
	case "dismiss":
	case "success":
		pid := g.next()
		cb.Payload = []byte(fmt.Sprintf(`{"razorpay_payment_id":%q,"razorpay_order_id":%q,"razorpay_signature":%q}`,
			pid, s.orderID, Sign(g.secret, s.orderID, pid)))
	default:
		// Unknown outcomes never turn into a signed success.
		cb.Event = "failed"
		cb.Payload = []byte(`{"error":{"code":"SANDBOX_ERROR","description":"Unknown sandbox outcome","reason":"sandbox_misconfigured"}}`)
	}
	return cb
}
