package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/netpilot/netpilot/pkg/engine/lock"
)

// NewLocker builds the per-execution advance locker. An empty Redis URL
// selects the in-process locker, which is only safe with a single worker.
func NewLocker(redisURL string, logger *slog.Logger) lock.Locker {
	if redisURL == "" {
		return lock.NewMemoryLocker()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return lock.NewRedisLocker(redis.NewClient(opts), logger, 0)
}
