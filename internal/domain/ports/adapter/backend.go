package adapter

import (
	"context"

	"fitcenter-checkout/internal/domain/model"
)

// PlanSource reads the membership catalog. Calls are idempotent and may be retried by callers.
type PlanSource interface {
	ListActivePlans(ctx context.Context) ([]*model.Plan, error)
}

type OrderRequest struct {
	Plan     model.Plan
	Customer model.CustomerDetails
	Method   model.PaymentMethod
}

// OrderAPI creates a payable order on the backend. A call is side-effecting and is never retried.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req OrderRequest) (model.OrderHandle, error)
}

type VerifyRequest struct {
	Result   model.PaymentResult
	Order    model.OrderHandle
	Plan     model.Plan
	Customer model.CustomerDetails
	Method   model.PaymentMethod
}

type VerifyResponse struct {
	Message   string
	Reference string // backend purchase/membership id when returned
}

// VerificationAPI submits a gateway result for authoritative verification.
// A backend rejection is reported as an error wrapping domain.ErrVerificationFailed.
type VerificationAPI interface {
	VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
}
