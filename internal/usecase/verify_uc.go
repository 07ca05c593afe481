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
	"fitcenter-checkout/internal/infra/metrics"
)

var _ VerificationUseCase = (*verifyUC)(nil)

// VerificationUseCase submits a gateway success for authoritative backend verification.
type VerificationUseCase interface {
	// Verify returns an error wrapping domain.ErrVerificationFailed unless the backend
	// confirmed the payment. A timeout is a failure, never an assumed success.
	Verify(ctx context.Context, req adapter.VerifyRequest) (adapter.VerifyResponse, error)
}

type verifyUC struct {
	api     adapter.VerificationAPI
	timeout time.Duration
	log     *zerolog.Logger
}

func NewVerificationUseCase(api adapter.VerificationAPI, timeout time.Duration, logger *zerolog.Logger) *verifyUC {
	l := logger.With().Str("component", "VerificationUseCase").Logger()
	return &verifyUC{api: api, timeout: timeout, log: &l}
}

func (u *verifyUC) Verify(ctx context.Context, req adapter.VerifyRequest) (adapter.VerifyResponse, error) {
	if !req.Result.Succeeded() || req.Result.OrderID == "" || req.Result.OrderID != req.Order.OrderID {
		return adapter.VerifyResponse{}, fmt.Errorf("%w: %w", domain.ErrVerificationFailed, domain.ErrStaleCallback)
	}

	cctx := ctx
	if u.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	defer logging.TraceDuration(u.log, "VerifyUC.Verify")()
	resp, err := u.api.VerifyPayment(cctx, req)
	if err == nil {
		return resp, nil
	}

	reason := "rejected"
	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		reason = "timeout"
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	case errors.Is(err, domain.ErrNetwork):
		reason = "network"
	}
	metrics.IncVerificationFailure(reason)
	logging.With(ctx, u.log).Error().Err(err).
		Bool("integrity", true).
		Str("reason", reason).
		Str("order_id", req.Order.OrderID).
		Str("payment_id", req.Result.PaymentID).
		Msg("payment reported by gateway did not verify")
	if !errors.Is(err, domain.ErrVerificationFailed) {
		err = fmt.Errorf("%w: %w", domain.ErrVerificationFailed, err)
	}
	return adapter.VerifyResponse{}, err
}

// VerificationFailure maps a Verify error to the attempt's terminal failure.
func VerificationFailure(err error) model.Failure {
	f := model.Failure{Kind: model.FailureVerification, Code: "rejected", Message: domain.ErrVerificationFailed.Error()}
	var remote *domain.RemoteError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		f.Code = "timeout"
	case errors.Is(err, domain.ErrNetwork):
		f.Code = "network"
	case errors.As(err, &remote) && remote.Message != "":
		f.Message = remote.Message
	}
	return f
}
