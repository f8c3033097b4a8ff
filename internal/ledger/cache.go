package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsVersionKey = "inventory:stats:version"

// StatsCache caches the dashboard stats in Redis. Invalidation is a version
// bump so stale entries simply stop being addressable and expire by TTL.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache instantiates the cache helper.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Fetch loads the cached stats or populates them using the loader.
func (c *StatsCache) Fetch(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("ledger: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return remarshal(value, dest)
	}

	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates cached stats after a stock mutation.
func (c *StatsCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, statsVersionKey).Err()
}

func (c *StatsCache) key(ctx context.Context) (string, error) {
	ver, err := c.client.Get(ctx, statsVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, statsVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("inventory:stats:%d", ver), nil
}

func remarshal(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
