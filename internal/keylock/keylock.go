// Package keylock provides an in-process table of keyed semaphores.
//
// Each key maps to a weight-1 semaphore that is created on first use and
// garbage-collected once it has been idle for the configured window. An entry
// that is held or waited on is never collected.
package keylock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meeplehall/internal/observability"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when a key could not be acquired before the wait bound or context expired.
var ErrBusy = errors.New("keylock: key is busy")

const (
	DefaultWait = 3 * time.Second
	DefaultIdle = 5 * time.Minute
)

type entry struct {
	sem      *semaphore.Weighted
	refs     int
	lastUsed time.Time
}

// Locker hands out per-key mutual exclusion.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
	idle    time.Duration
	now     func() time.Time
}

// New returns a Locker. Non-positive durations fall back to DefaultWait and DefaultIdle.
func New(wait, idle time.Duration) *Locker {
	if wait <= 0 {
		wait = DefaultWait
	}
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Locker{
		entries: make(map[string]*entry),
		wait:    wait,
		idle:    idle,
		now:     time.Now,
	}
}

// LikeKey is the lock key for one user's like state on one item.
func LikeKey(userID uint, itemType string, itemID uint) string {
	return fmt.Sprintf("like:%d:%s:%d", userID, itemType, itemID)
}

// Acquire blocks until key is free, the wait bound elapses, or ctx is done.
// The returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	e := l.ref(key)

	if e.sem.TryAcquire(1) {
		observability.KeyLockContention.WithLabelValues("acquired").Inc()
		return l.releaser(key, e), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(e)
		outcome := "busy"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		observability.KeyLockContention.WithLabelValues(outcome).Inc()
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	observability.KeyLockContention.WithLabelValues("waited").Inc()
	return l.releaser(key, e), nil
}

func (l *Locker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
		observability.KeyLockEntries.Set(float64(len(l.entries)))
	}
	e.refs++
	e.lastUsed = l.now()
	return e
}

func (l *Locker) unref(e *entry) {
	l.mu.Lock()
	e.refs--
	e.lastUsed = l.now()
	l.mu.Unlock()
}

func (l *Locker) releaser(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(e)
		})
	}
}

// Sweep removes entries with no holders or waiters that have been idle for the idle window.
// It returns the number of entries removed.
func (l *Locker) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	removed := 0
	for k, e := range l.entries {
		if e.refs == 0 && !e.lastUsed.After(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	observability.KeyLockEntries.Set(float64(len(l.entries)))
	return removed
}

// Len returns the number of tracked keys.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start runs Sweep every interval until ctx is cancelled. A non-positive interval uses a fifth of the idle window.
func (l *Locker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.idle / 5
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}
