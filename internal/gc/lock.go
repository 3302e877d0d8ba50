package gc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compare-and-delete so an expired lock is never released by a latecomer
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLock is a best-effort mutual-exclusion guard for the sweep when
// several service instances share one metadata store. Losing the race is
// fine; the next tick tries again.
type RedisLock struct {
	Client redis.UniversalClient
	Key    string
	TTL    time.Duration
}

func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLock{Client: client, Key: key, TTL: ttl}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (bool, func(), error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	release := func() {
		_ = l.Client.Eval(context.WithoutCancel(ctx), releaseScript, []string{l.Key}, token).Err()
	}
	return true, release, nil
}
