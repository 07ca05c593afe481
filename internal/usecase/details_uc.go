package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/domain/ports/repository"
	"fitcenter-checkout/internal/infra/logging"
)

var _ CustomerDetailsUseCase = (*detailsUC)(nil)

// CustomerDetailsUseCase collects validated purchaser identity fields.
type CustomerDetailsUseCase interface {
	// Collect prompts until valid details are entered or the purchaser cancels.
	// Invalid input is never returned; it is sent back with the problems found.
	Collect(ctx context.Context, purchaserID, attemptID string, prompter adapter.DetailsPrompter) (model.CustomerDetails, error)
}

type detailsUC struct {
	cache repository.CustomerCache // optional
	log   *zerolog.Logger
	dev   bool
}

func NewCustomerDetailsUseCase(cache repository.CustomerCache, logger *zerolog.Logger, dev bool) *detailsUC {
	l := logger.With().Str("component", "CustomerDetailsUseCase").Logger()
	return &detailsUC{cache: cache, log: &l, dev: dev}
}

const cacheOpTimeout = 2 * time.Second

func (u *detailsUC) Collect(ctx context.Context, purchaserID, attemptID string, prompter adapter.DetailsPrompter) (model.CustomerDetails, error) {
	log := logging.With(ctx, u.log)
	prompt := adapter.DetailsPrompt{AttemptID: attemptID, Prefill: u.prefill(ctx, purchaserID)}

	for {
		in, err := prompter.PromptDetails(ctx, prompt)
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil {
				return model.CustomerDetails{}, domain.ErrCancelled
			}
			return model.CustomerDetails{}, err
		}
		details, err := model.NewCustomerDetails(in.Name, in.Email, in.Phone)
		if err != nil {
			var verrs model.ValidationErrors
			if !errors.As(err, &verrs) {
				return model.CustomerDetails{}, err
			}
			log.Debug().Str("email", logging.Redact(in.Email, u.dev)).Int("problems", len(verrs)).Msg("details rejected, re-prompting")
			prompt.Prefill = model.CustomerDetails{Name: in.Name, Email: in.Email, Phone: in.Phone}
			prompt.Problems = verrs
			continue
		}
		u.remember(ctx, purchaserID, details)
		return details, nil
	}
}

func (u *detailsUC) prefill(ctx context.Context, purchaserID string) model.CustomerDetails {
	if u.cache == nil {
		return model.CustomerDetails{}
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	d, err := u.cache.Load(cctx, purchaserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Err(err).Msg("customer cache load failed")
		}
		return model.CustomerDetails{}
	}
	return d
}

// remember is best-effort: the cache only serves prefill.
func (u *detailsUC) remember(ctx context.Context, purchaserID string, d model.CustomerDetails) {
	if u.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := u.cache.Save(cctx, purchaserID, d); err != nil {
		u.log.Warn().Err(err).Msg("customer cache save failed")
	}
}
