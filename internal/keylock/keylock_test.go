package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newWithClock(wait, idle time.Duration) (*Locker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(wait, idle)
	l.now = clock.Now
	return l, clock
}

func TestLikeKey(t *testing.T) {
	assert.Equal(t, "like:7:post:42", LikeKey(7, "post", 42))
	assert.NotEqual(t, LikeKey(7, "post", 42), LikeKey(7, "comment", 42))
}

func TestAcquireSerializesSameKey(t *testing.T) {
	l := New(time.Second, time.Minute)
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	l := New(50*time.Millisecond, time.Minute)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer r1()
	r2, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	defer r2()
	assert.Equal(t, 2, l.Len())
}

func TestAcquireTimesOutBusy(t *testing.T) {
	l := New(20*time.Millisecond, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrBusy)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	release()
	release2, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	release2()
}

func TestAcquireHonorsCallerContext(t *testing.T) {
	l := New(time.Minute, time.Minute)
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New(20*time.Millisecond, time.Minute)
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	assert.NotPanics(t, release)

	r, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	r()
}

func TestSweepCollectsOnlyIdleEntries(t *testing.T) {
	l, clock := newWithClock(20*time.Millisecond, 5*time.Minute)
	ctx := context.Background()

	idle, err := l.Acquire(ctx, "idle")
	require.NoError(t, err)
	idle()

	held, err := l.Acquire(ctx, "held")
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 0, l.Sweep(), "nothing idle long enough yet")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len(), "held entry survives")

	held()
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 0, l.Len())
}

func TestSweepSkipsEntryWithWaiter(t *testing.T) {
	l, clock := newWithClock(time.Second, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		r, err := l.Acquire(ctx, "k")
		if err == nil {
			acquired <- r
		}
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.entries["k"].refs == 2
	}, time.Second, time.Millisecond)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, l.Sweep())

	release()
	r := <-acquired
	r()
}

func TestStartRunsJanitor(t *testing.T) {
	l := New(10*time.Millisecond, time.Millisecond)
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx, 2*time.Millisecond)

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 2*time.Millisecond)
}
