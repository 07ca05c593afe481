package repository

import (
	"context"

	"fitcenter-checkout/internal/domain/model"
)

// AttemptRepository journals terminal checkout attempts.
type AttemptRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Attempt) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Attempt, error)
	ListCompletedByPurchaser(ctx context.Context, tx Tx, purchaserID string, limit int) ([]*model.PurchaseOutcome, error)
}
