package adapter

import (
	"context"
	"time"
)

// Locker guards the single in-flight checkout per purchaser across replicas.
// TryLock returns domain.ErrCheckoutInProgress when the key is held.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter counts events per key within a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
