package verify

import (
	"context"
	"sync"
)

// Locker serializes verification of a single domain. The recurring
// sweep and the manual trigger both take the domain's lock before
// touching it, so a domain is never evaluated twice concurrently even
// across processes.
type Locker interface {
	// TryAcquire attempts to take the lock for key without blocking.
	// When acquired is true the caller must call release when done.
	TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// MemoryLocker is a process-local Locker for single-instance
// deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker constructs an in-process locker.
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
		delete(l.held, key)
		l.mu.Unlock()
	}
	return release, true, nil
}
