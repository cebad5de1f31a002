// Package lock provides keyed mutual exclusion.
// Callers holding different keys never block each other.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key cannot be locked in time.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// keyMutex wraps a mutex with reference counting for cleanup.
// refCount covers holders and waiters and is guarded by KeyLock.mu.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock serializes work per key. Entries are dropped once no goroutine
// holds or waits on them, so the key space may be unbounded.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

// acquireRef retrieves or creates the mutex for key and registers interest.
func (kl *KeyLock) acquireRef(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{}
		kl.locks[key] = km
	}
	km.refCount++
	return km
}

// releaseRef drops interest in key and forgets it when unused.
func (kl *KeyLock) releaseRef(key string, km *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	km.refCount--
	if km.refCount == 0 {
		delete(kl.locks, key)
	}
}

// lock waits for key until it is acquired, timeout elapses or ctx is done.
func (kl *KeyLock) lock(ctx context.Context, key string, timeout time.Duration) (*keyMutex, error) {
	km := kl.acquireRef(key)
	if km.mu.TryLock() {
		return km, nil
	}

	done := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
		return km, nil
	case <-timer.C:
		err = ErrLockTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	// The waiter still gets the mutex eventually; hand it straight back.
	go func() {
		<-done
		km.mu.Unlock()
		kl.releaseRef(key, km)
	}()
	return nil, err
}

// WithLockContext runs fn while holding the lock for key. It gives up with
// ErrLockTimeout once timeout elapses, or with ctx's error when ctx ends
// first; fn does not run in either case.
func (kl *KeyLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	km, err := kl.lock(ctx, key, timeout)
	if err != nil {
		return err
	}
	defer func() {
		km.mu.Unlock()
		kl.releaseRef(key, km)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
