package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-call-tracker/internal/observability"
)

// PoolCacheTTL is how long a resolved pool stays in Redis. Pool addresses
// rarely change.
const (
	PoolCacheTTL       = 7 * 24 * time.Hour
	poolCacheKeyPrefix = "poolcache:"
)

// PoolCache memoizes mint -> pool address lookups. An empty pool address
// records that resolution failed ("absent"). The first stored value for a
// mint wins until the entry is dropped.
//
// Absent entries belong to one run: ResetRun drops them so the next run
// retries resolution. When a Redis client is set, resolved pools are also
// written to Redis so lookups stay warm across runs and processes. Absent
// entries are never written to Redis. Redis errors are ignored and the
// in-memory map is used.
type PoolCache struct {
	mu      sync.RWMutex
	entries map[string]string
	rdb     *redis.Client
}

// NewPoolCache creates a cache. rdb may be nil.
func NewPoolCache(rdb *redis.Client) *PoolCache {
	return &PoolCache{
		entries: make(map[string]string),
		rdb:     rdb,
	}
}

// Lookup returns the cached pool for mint. known is false when the mint was
// not resolved yet; pool is empty when it was resolved as absent.
func (c *PoolCache) Lookup(ctx context.Context, mint string) (pool string, known bool) {
	c.mu.RLock()
	pool, known = c.entries[mint]
	c.mu.RUnlock()

	if !known && c.rdb != nil {
		v, err := c.rdb.Get(ctx, poolCacheKeyPrefix+mint).Result()
		if err == nil && v != "" {
			pool, known = v, true
			c.remember(mint, v)
		}
	}

	switch {
	case !known:
		observability.RecordPoolCacheLookup("miss")
	case pool == "":
		observability.RecordPoolCacheLookup("absent")
	default:
		observability.RecordPoolCacheLookup("hit")
	}
	return pool, known
}

// Store records the pool for mint, or absence when pool is empty.
// An existing entry is kept.
func (c *PoolCache) Store(ctx context.Context, mint, pool string) {
	if !c.remember(mint, pool) {
		return
	}
	if c.rdb == nil || pool == "" {
		return
	}
	c.rdb.SetNX(ctx, poolCacheKeyPrefix+mint, pool, PoolCacheTTL)
}

// ResetRun drops the absent entries recorded during the previous run.
// Resolved pools are kept.
func (c *PoolCache) ResetRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for mint, pool := range c.entries {
		if pool == "" {
			delete(c.entries, mint)
		}
	}
}

// Len returns the number of mints held in memory.
func (c *PoolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *PoolCache) remember(mint, pool string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[mint]; ok {
		return false
	}
	c.entries[mint] = pool
	return true
}

// NewRedisClient connects to addr, which is either host:port or a
// redis:// / rediss:// URL.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
