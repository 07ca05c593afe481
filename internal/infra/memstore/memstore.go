// Package memstore holds in-process stand-ins for Redis and Postgres, used when
// those are not configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/repository"
)

var (
	_ repository.CustomerCache     = (*CustomerCache)(nil)
	_ repository.AttemptRepository = (*AttemptRepo)(nil)
)

type CustomerCache struct {
	mu sync.RWMutex
	m  map[string]model.CustomerDetails
}

func NewCustomerCache() *CustomerCache {
	return &CustomerCache{m: make(map[string]model.CustomerDetails)}
}

func (c *CustomerCache) Load(ctx context.Context, purchaserID string) (model.CustomerDetails, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.m[purchaserID]
	if !ok {
		return model.CustomerDetails{}, domain.ErrNotFound
	}
	return d, nil
}

func (c *CustomerCache) Save(ctx context.Context, purchaserID string, d model.CustomerDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[purchaserID] = d
	return nil
}

// AttemptRepo keeps terminal attempts in memory. The tx argument is ignored.
type AttemptRepo struct {
	mu       sync.RWMutex
	attempts map[string]*model.Attempt
}

func NewAttemptRepo() *AttemptRepo {
	return &AttemptRepo{attempts: make(map[string]*model.Attempt)}
}

func (r *AttemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.Attempt) error {
	if a == nil || a.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[a.ID] = a.Snapshot()
	return nil
}

func (r *AttemptRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Snapshot(), nil
}

// ListCompletedByPurchaser returns outcomes newest first.
func (r *AttemptRepo) ListCompletedByPurchaser(ctx context.Context, tx repository.Tx, purchaserID string, limit int) ([]*model.PurchaseOutcome, error) {
	r.mu.RLock()
	out := make([]*model.PurchaseOutcome, 0)
	for _, a := range r.attempts {
		if a.PurchaserID == purchaserID && a.State == model.StateCompleted && a.Outcome != nil {
			o := *a.Outcome
			out = append(out, &o)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
