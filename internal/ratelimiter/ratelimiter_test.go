package ratelimiter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adtech/kvserving/internal/ratelimiter"
)

// fakeClock is manually advanced by tests instead of following wall
// time.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeSleeper advances the clock by the requested duration instead of
// actually blocking, so Acquire's retry loop resolves instantly.
type fakeSleeper struct{ clock *fakeClock }

func (s *fakeSleeper) Sleep(d time.Duration) { s.clock.Advance(d) }

func newFakeLimiter(capacity, fillRate float64) (*ratelimiter.RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := ratelimiter.New(ratelimiter.Config{
		Capacity: capacity,
		FillRate: fillRate,
		Clock:    clock,
		Sleeper:  &fakeSleeper{clock: clock},
	})
	return rl, clock
}

func TestTryAcquire_SucceedsWithinCapacity(t *testing.T) {
	rl, _ := newFakeLimiter(10, 1)
	assert.True(t, rl.TryAcquire(5))
	assert.True(t, rl.TryAcquire(5))
	assert.False(t, rl.TryAcquire(1))
}

func TestTryAcquire_RefillsOverTime(t *testing.T) {
	rl, clock := newFakeLimiter(10, 2) // 2 permits/sec
	assert.True(t, rl.TryAcquire(10))
	assert.False(t, rl.TryAcquire(1))

	clock.Advance(1 * time.Second)
	assert.True(t, rl.TryAcquire(2))
	assert.False(t, rl.TryAcquire(1))
}

func TestTryAcquire_NeverExceedsCapacity(t *testing.T) {
	rl, clock := newFakeLimiter(5, 100)
	clock.Advance(10 * time.Second)
	assert.True(t, rl.TryAcquire(5))
	assert.False(t, rl.TryAcquire(1))
}

func TestAcquire_BlocksUntilEnoughPermits(t *testing.T) {
	rl, _ := newFakeLimiter(1, 1) // 1 permit/sec, fake sleeper advances clock each retry
	rl.Acquire(1)                 // drains the bucket
	rl.Acquire(1)                 // must wait for refill; resolves via fakeSleeper advancing time
}

func TestSetFillRate_PreservesAccumulatedPermits(t *testing.T) {
	rl, _ := newFakeLimiter(10, 1)
	assert.True(t, rl.TryAcquire(3))
	rl.SetFillRate(5)
	assert.True(t, rl.TryAcquire(7)) // the remaining 7 permits should still be there
}
