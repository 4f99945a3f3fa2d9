// Package lock provides per-execution mutual exclusion for the engine's
// advance operation. At most one advance may run per execution at any
// instant; a second caller is told the lock is held rather than blocked.
package lock

import "context"

// Locker acquires a named lock without blocking. The returned release
// function must be called on every exit path once acquired is true.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}
