package adapter

import (
	"context"

	"fitcenter-checkout/internal/domain/model"
)

type GatewayRequest struct {
	AttemptID string
	Order     model.OrderHandle
	Plan      model.Plan
	Customer  model.CustomerDetails
	Method    model.PaymentMethod
}

// PaymentGateway is the hex port for the external payment session provider.
type PaymentGateway interface {
	Name() string
	// Open starts exactly one session for the order handle. A handle that was
	// already opened once is refused.
	Open(ctx context.Context, req GatewayRequest) (GatewaySession, error)
}

// GatewaySession is a single external payment session bound to one order handle.
type GatewaySession interface {
	ID() string
	OrderID() string
	Options() model.GatewayOptions
	// Await blocks until the session reports a result or ctx is done.
	// Results may be delivered more than once; callers check the order id.
	Await(ctx context.Context) (model.PaymentResult, error)
	// Close tears the session down. Later callbacks are rejected as stale.
	Close() error
}
