package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares resolved tenants across application processes.
//
// It serializes tenants through an internal record rather than the public
// JSON representation: the public form hides the database name, which the
// connection router needs back on a cache hit.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// cachedTenant is the full wire form for cache storage, including the
// fields the public JSON representation hides.
type cachedTenant struct {
	Tenant
	Database string `json:"database"`
}

// NewRedisCache creates a Redis-backed cache. keyPrefix namespaces the keys,
// e.g. "tenant:".
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "tenant:"
	}
	return &RedisCache{client: client, prefix: keyPrefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var rec cachedTenant
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Poisoned entry, drop it so the next lookup repopulates.
		c.Delete(ctx, key)
		return nil, false
	}

	t := rec.Tenant
	t.Database = rec.Database
	return &t, true
}

func (c *RedisCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {
	if t == nil {
		return
	}

	raw, err := json.Marshal(cachedTenant{Tenant: *t, Database: t.Database})
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefix+key, raw, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, c.prefix+key)
}
