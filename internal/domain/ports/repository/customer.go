package repository

import (
	"context"

	"fitcenter-checkout/internal/domain/model"
)

// CustomerCache keeps the last used details per purchaser for prefill only.
// Load returns domain.ErrNotFound when nothing is cached.
type CustomerCache interface {
	Load(ctx context.Context, purchaserID string) (model.CustomerDetails, error)
	Save(ctx context.Context, purchaserID string, d model.CustomerDetails) error
}
