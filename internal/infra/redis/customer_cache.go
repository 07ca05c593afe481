package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/repository"
	"fitcenter-checkout/internal/infra/metrics"
)

var _ repository.CustomerCache = (*CustomerCache)(nil)

// Cipher seals cached values. security.EncryptionService satisfies it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CustomerCache keeps the last details a purchaser entered, for prefill only.
type CustomerCache struct {
	client RedisClient
	cipher Cipher // optional
	ttl    time.Duration
}

func NewCustomerCache(client RedisClient, cipher Cipher, ttl time.Duration) *CustomerCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CustomerCache{client: client, cipher: cipher, ttl: ttl}
}

func CustomerKey(purchaserID string) string { return KeyPrefix + "customer:" + purchaserID }

func (c *CustomerCache) Load(ctx context.Context, purchaserID string) (model.CustomerDetails, error) {
	val, err := c.client.Get(ctx, CustomerKey(purchaserID))
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest(metrics.CacheCustomer, metrics.CacheMiss)
		return model.CustomerDetails{}, domain.ErrNotFound
	}
	if err != nil {
		metrics.IncCacheRequest(metrics.CacheCustomer, metrics.CacheError)
		return model.CustomerDetails{}, err
	}
	metrics.IncCacheRequest(metrics.CacheCustomer, metrics.CacheHit)
	if c.cipher != nil {
		if val, err = c.cipher.Decrypt(val); err != nil {
			return model.CustomerDetails{}, fmt.Errorf("decrypt cached customer: %w", err)
		}
	}
	var d model.CustomerDetails
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return model.CustomerDetails{}, fmt.Errorf("decode cached customer: %w", err)
	}
	return d, nil
}

func (c *CustomerCache) Save(ctx context.Context, purchaserID string, d model.CustomerDetails) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	val := string(b)
	if c.cipher != nil {
		if val, err = c.cipher.Encrypt(val); err != nil {
			return fmt.Errorf("encrypt customer: %w", err)
		}
	}
	return c.client.Set(ctx, CustomerKey(purchaserID), val, c.ttl)
}
