package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKey = "steward:audit:remediation-lock"

// releaseScript deletes the lock only when the stored token still matches,
// so a run whose lease expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock implements RunLock across multiple instances using a leased
// SET NX key. The lease bounds how long a crashed holder can block new runs.
type RedisLock struct {
	client *redis.Client
	lease  time.Duration
}

func NewRedis(client *redis.Client, lease time.Duration) *RedisLock {
	if lease <= 0 {
		lease = 15 * time.Minute
	}
	return &RedisLock{client: client, lease: lease}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, l.lease).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire remediation lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Best effort: release runs during cleanup paths where the caller's
		// context may already be cancelled.
		_, _ = releaseScript.Run(context.Background(), l.client, []string{lockKey}, token).Result()
	}
	return release, true, nil
}
