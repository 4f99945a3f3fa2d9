package lock

import (
	"context"
	"sync"
)

// MemoryLocker serializes advances within a single process. It is the
// default for single-worker deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, false, nil
	}

	l.held[key] = true

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.held, key)
	}

	return release, true, nil
}
