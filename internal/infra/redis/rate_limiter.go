package redis

import (
	"context"
	"strconv"
	"time"

	"fitcenter-checkout/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter counts events in clock-aligned windows. Each window has its own
// key (<key>:<window start unix>), so a counter whose EXPIRE was lost still
// stops applying once the window rolls over.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	start := r.now().Truncate(window)
	bucket := key + ":" + strconv.FormatInt(start.Unix(), 10)

	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, bucket, window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
