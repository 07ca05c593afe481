package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase loads the purchasable membership plans.
type CatalogUseCase interface {
	// List returns active plans. An empty list is a valid result.
	List(ctx context.Context) ([]*model.Plan, error)
	// Get returns one plan by id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Plan, error)
}

type catalogUC struct {
	source adapter.PlanSource
	log    *zerolog.Logger
}

func NewCatalogUseCase(source adapter.PlanSource, logger *zerolog.Logger) *catalogUC {
	l := logger.With().Str("component", "CatalogUseCase").Logger()
	return &catalogUC{source: source, log: &l}
}

func (u *catalogUC) List(ctx context.Context) ([]*model.Plan, error) {
	plans, err := u.source.ListActivePlans(ctx)
	if err != nil {
		u.log.Warn().Err(err).Msg("load plans failed")
		return nil, err
	}
	if plans == nil {
		plans = []*model.Plan{}
	}
	return plans, nil
}

func (u *catalogUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	plans, err := u.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
}
