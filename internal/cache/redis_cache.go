package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	redis "github.com/redis/go-redis/v9"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

// DefaultKey is the Redis key holding the active offer list.
const DefaultKey = "kart:offers:active"

// RedisOfferCache stores the active offer list as a JSON document.
type RedisOfferCache struct {
	client *redis.Client
	key    string
}

var _ OfferCache = (*RedisOfferCache)(nil)

// NewRedisOfferCache connects to the Redis server described by opts.
func NewRedisOfferCache(opts *redis.Options) *RedisOfferCache {
	return &RedisOfferCache{client: redis.NewClient(opts), key: DefaultKey}
}

func (c *RedisOfferCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisOfferCache) Close() error {
	return c.client.Close()
}

func (c *RedisOfferCache) Get(ctx context.Context) ([]offer.Combo, bool, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get offers")
	}

	var offers []offer.Combo
	if err := json.Unmarshal(val, &offers); err != nil {
		return nil, false, errors.Wrap(err, "decode offers")
	}
	return offers, true, nil
}

func (c *RedisOfferCache) Set(ctx context.Context, offers []offer.Combo, ttl time.Duration) error {
	if offers == nil {
		offers = []offer.Combo{}
	}
	payload, err := json.Marshal(offers)
	if err != nil {
		return errors.Wrap(err, "encode offers")
	}
	if err := c.client.Set(ctx, c.key, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "set offers")
	}
	return nil
}

// Invalidate drops the cached list so the next read goes to the store.
func (c *RedisOfferCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return errors.Wrap(err, "delete offers")
	}
	return nil
}
