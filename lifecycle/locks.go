package lifecycle

import (
	"context"
	"slices"
	"sync"
)

// fifoLock is a mutex that grants ownership in arrival order. Unlock hands
// the lock straight to the oldest waiter, so a late arrival can never
// overtake the queue.
type fifoLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// Lock blocks until the lock is owned or ctx ends.
func (l *fifoLock) Lock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ticket := make(chan struct{})
	l.waiters = append(l.waiters, ticket)
	l.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		if i := slices.Index(l.waiters, ticket); i >= 0 {
			l.waiters = slices.Delete(l.waiters, i, i+1)
			l.mu.Unlock()
			return ctx.Err()
		}
		l.mu.Unlock()
		// Ownership arrived together with the cancellation.
		l.Unlock()
		return ctx.Err()
	}
}

func (l *fifoLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) == 0 {
		l.held = false
		return
	}
	next := l.waiters[0]
	l.waiters = slices.Delete(l.waiters, 0, 1)
	close(next)
}

func (l *fifoLock) queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// lockTable holds one lock per plugin name, created on first use.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*fifoLock
}

func (t *lockTable) get(name string) *fifoLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[string]*fifoLock)
	}
	l, ok := t.locks[name]
	if !ok {
		l = &fifoLock{}
		t.locks[name] = l
	}
	return l
}
