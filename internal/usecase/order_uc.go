package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/logging"
)

var _ OrderUseCase = (*orderUC)(nil)

// OrderUseCase asks the backend for a payable order.
type OrderUseCase interface {
	// Create issues exactly one create-order call. It is never retried:
	// a timeout may still have produced a billable order.
	Create(ctx context.Context, plan model.Plan, customer model.CustomerDetails, method model.PaymentMethod) (model.OrderHandle, error)
}

type orderUC struct {
	api     adapter.OrderAPI
	timeout time.Duration
	log     *zerolog.Logger
}

func NewOrderUseCase(api adapter.OrderAPI, timeout time.Duration, logger *zerolog.Logger) *orderUC {
	l := logger.With().Str("component", "OrderUseCase").Logger()
	return &orderUC{api: api, timeout: timeout, log: &l}
}

func (u *orderUC) Create(ctx context.Context, plan model.Plan, customer model.CustomerDetails, method model.PaymentMethod) (model.OrderHandle, error) {
	if !plan.Active {
		return model.OrderHandle{}, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrPlanUnavailable)
	}
	if err := customer.Validate(); err != nil {
		return model.OrderHandle{}, err
	}
	if method.IsUPI() && !model.ValidUPIID(method.UPIID) {
		return model.OrderHandle{}, model.ValidationErrors{{Field: "upi_id", Reason: "invalid UPI id"}}
	}

	cctx := ctx
	if u.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	defer logging.TraceDuration(u.log, "OrderUC.Create")()
	h, err := u.api.CreateOrder(cctx, adapter.OrderRequest{Plan: plan, Customer: customer, Method: method})
	if err != nil {
		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		logging.With(ctx, u.log).Warn().Err(err).Str("plan_id", plan.ID).Msg("create order failed")
		return model.OrderHandle{}, fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
	}
	if h.OrderID == "" {
		return model.OrderHandle{}, fmt.Errorf("%w: backend returned no order id", domain.ErrOrderCreationFailed)
	}
	return h, nil
}

// OrderFailure maps a Create error to the attempt's terminal failure.
// Timeouts and transport errors are ambiguous: the order may exist.
func OrderFailure(err error) model.Failure {
	if errors.Is(err, domain.ErrPlanUnavailable) {
		return model.Failure{Kind: model.FailurePlanUnavailable, Message: domain.ErrPlanUnavailable.Error()}
	}
	f := model.Failure{Kind: model.FailureOrder, Code: "error", Message: err.Error()}
	var remote *domain.RemoteError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		f.Code, f.Ambiguous = "timeout", true
		f.Message = "the order request timed out"
	case errors.As(err, &remote) && errors.Is(remote.Err, domain.ErrBackendRejected):
		f.Code = "rejected"
		if remote.Message != "" {
			f.Message = remote.Message
		}
	case errors.Is(err, domain.ErrNetwork):
		f.Code, f.Ambiguous = "network", true
	case errors.Is(err, domain.ErrValidation):
		f.Code = "invalid_input"
	}
	return f
}
