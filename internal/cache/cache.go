package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// Cache memoizes active artifact rows (id -> storage key) in front of the
// metadata store so repeated downloads of the same artifact skip Postgres.
// Entries are invalidated on any status transition and capped by TTL so a
// stale entry can never outlive the artifact itself.
type Cache struct {
	Redis     redis.UniversalClient
	Namespace string
}

// NewCache creates a namespaced cache on an existing client.
func NewCache(namespace string, redisCl redis.UniversalClient) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}

// StorageKey returns the cached storage key for an artifact id.
func (c *Cache) StorageKey(ctx context.Context, id string) (string, error) {
	val, err := c.Redis.Get(ctx, c.Namespace+":"+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// StoreStorageKey caches an id -> storage key mapping for ttl.
func (c *Cache) StoreStorageKey(ctx context.Context, id, storageKey string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.Redis.Set(ctx, c.Namespace+":"+id, storageKey, ttl).Err()
}

// Remove drops an id from the cache. Called on every status transition.
func (c *Cache) Remove(ctx context.Context, id string) error {
	return c.Redis.Del(ctx, c.Namespace+":"+id).Err()
}

// Flush clears the whole namespace.
func (c *Cache) Flush(ctx context.Context) error {
	keys := c.Redis.Keys(ctx, c.Namespace+":*")
	pl := c.Redis.Pipeline()
	for _, key := range keys.Val() {
		pl.Del(ctx, key)
	}
	_, err := pl.Exec(ctx)
	return err
}
