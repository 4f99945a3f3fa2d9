package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the holder token still matches,
// so an expired lock re-acquired by another worker is never released by the
// first holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker serializes advances across workers using SET NX with a TTL.
// The TTL bounds how long a crashed worker can hold an execution.
type RedisLocker struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	prefix string
}

// NewRedisLocker creates a distributed locker on the given client.
func NewRedisLocker(client *redis.Client, logger *slog.Logger, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisLocker{
		client: client,
		logger: logger,
		ttl:    ttl,
		prefix: "netpilot:advance:",
	}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}

	if !acquired {
		return nil, false, nil
	}

	release := func() {
		err := l.client.Eval(context.WithoutCancel(ctx), releaseScript, []string{lockKey}, token).Err()
		if err != nil && err != redis.Nil {
			l.logger.Error("failed to release advance lock", "key", lockKey, "error", err)
		}
	}

	return release, true, nil
}
