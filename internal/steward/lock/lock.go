// Package lock serializes remediation across audit runs. At most one run may
// hold write access to the record set at a time; dry runs never take the
// lock.
package lock

import (
	"context"
	"sync"
)

// RunLock guards the remediation phase. TryAcquire does not block: a run that
// cannot get the lock fails fast so the caller can retry as a fresh run.
type RunLock interface {
	// TryAcquire returns a release func when the lock was obtained, or
	// ok=false when another run holds it.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// InProcessLock implements RunLock for a single-instance deployment.
type InProcessLock struct {
	mu   sync.Mutex
	held bool
}

func NewInProcess() *InProcessLock {
	return &InProcessLock{}
}

func (l *InProcessLock) TryAcquire(_ context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
	}
	return release, true, nil
}
