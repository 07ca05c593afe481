package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/metrics"
)

var _ adapter.PlanSource = (*planCacheDecorator)(nil)

const activePlansKey = KeyPrefix + "plans:active"

type planCacheDecorator struct {
	inner adapter.PlanSource
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewPlanCacheDecorator caches the active plan list. Redis errors fall through to inner.
func NewPlanCacheDecorator(inner adapter.PlanSource, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) adapter.PlanSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "PlanCache").Logger()
	return &planCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *planCacheDecorator) ListActivePlans(ctx context.Context) ([]*model.Plan, error) {
	val, err := d.cache.Get(ctx, activePlansKey)
	if err == nil {
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest(metrics.CachePlans, metrics.CacheHit)
			return plans, nil
		}
		d.log.Warn().Msg("discarding undecodable cached plan list")
	} else if !errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest(metrics.CachePlans, metrics.CacheError)
		d.log.Warn().Err(err).Msg("plan cache read failed")
	}

	metrics.IncCacheRequest(metrics.CachePlans, metrics.CacheMiss)
	plans, err := d.inner.ListActivePlans(ctx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		b, _ := json.Marshal(plans)
		if err := d.cache.Set(ctx, activePlansKey, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Msg("plan cache write failed")
		}
	}
	return plans, nil
}
