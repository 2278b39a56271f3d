package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds a possibly stale view of slot documents. Callers never treat a
// cached read as authoritative for confirmation.
type Cache interface {
	Get(ctx context.Context, courtID, date string) (Slots, bool, error)
	Set(ctx context.Context, courtID, date string, slots Slots) error
	Invalidate(ctx context.Context, courtID, date string) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string) (Slots, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, string, Slots) error         { return nil }
func (NopCache) Invalidate(context.Context, string, string) error         { return nil }

// RedisCache stores slot maps as JSON with a short TTL.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "availability"}
}

func (c *RedisCache) key(courtID, date string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, courtID, date)
}

func (c *RedisCache) Get(ctx context.Context, courtID, date string) (Slots, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(courtID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get availability: %w", err)
	}
	var slots Slots
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("decode cached availability: %w", err)
	}
	return slots, true, nil
}

func (c *RedisCache) Set(ctx context.Context, courtID, date string, slots Slots) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(courtID, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set availability: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, courtID, date string) error {
	if err := c.rdb.Del(ctx, c.key(courtID, date)).Err(); err != nil {
		return fmt.Errorf("redis del availability: %w", err)
	}
	return nil
}
