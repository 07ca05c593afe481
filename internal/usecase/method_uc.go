package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/logging"
)

var _ PaymentMethodUseCase = (*methodUC)(nil)

// PaymentMethodUseCase lets the purchaser choose card or UPI.
type PaymentMethodUseCase interface {
	// Select prompts until a valid method is chosen or the purchaser cancels.
	// A UPI selection is only returned with a well-formed UPI id.
	Select(ctx context.Context, attemptID string, prompter adapter.MethodPrompter) (model.PaymentMethod, error)
}

type methodUC struct {
	log *zerolog.Logger
	dev bool
}

func NewPaymentMethodUseCase(logger *zerolog.Logger, dev bool) *methodUC {
	l := logger.With().Str("component", "PaymentMethodUseCase").Logger()
	return &methodUC{log: &l, dev: dev}
}

func (u *methodUC) Select(ctx context.Context, attemptID string, prompter adapter.MethodPrompter) (model.PaymentMethod, error) {
	prompt := adapter.MethodPrompt{AttemptID: attemptID}
	for {
		in, err := prompter.PromptMethod(ctx, prompt)
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil {
				return model.PaymentMethod{}, domain.ErrCancelled
			}
			return model.PaymentMethod{}, err
		}
		m, err := model.NewPaymentMethod(in.Kind, in.UPIID)
		if err != nil {
			var verrs model.ValidationErrors
			if !errors.As(err, &verrs) {
				return model.PaymentMethod{}, err
			}
			logging.With(ctx, u.log).Debug().
				Str("method", in.Kind).
				Str("upi_id", logging.Redact(in.UPIID, u.dev)).
				Msg("payment method rejected, re-prompting")
			prompt.Problems = verrs
			continue
		}
		return m, nil
	}
}
