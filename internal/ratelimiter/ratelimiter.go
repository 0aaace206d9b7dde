// Package ratelimiter implements a token-bucket limiter with lazily
// computed refill. The clock and sleep primitive are injectable so
// refill can be driven deterministically in tests, since
// golang.org/x/time/rate (the pack's off-the-shelf limiter) hardcodes
// time.Now internally and can't be driven by a fake clock in tests.
package ratelimiter

import (
	"sync"
	"time"
)

// Clock abstracts time so tests can advance it deterministically
// instead of sleeping in real time.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts blocking so tests can make acquire's cooperative
// wait a no-op or an instrumented stub.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// RateLimiter is a token bucket: permits accumulate at fillRate per
// second up to capacity, and Acquire blocks cooperatively until enough
// permits exist.
type RateLimiter struct {
	mu         sync.Mutex
	permits    float64
	fillRate   float64
	capacity   float64
	lastRefill time.Time

	clock   Clock
	sleeper Sleeper
}

// Config controls RateLimiter construction.
type Config struct {
	Capacity float64
	FillRate float64
	Clock    Clock
	Sleeper  Sleeper
}

// New constructs a RateLimiter starting at full capacity. Clock and
// Sleeper default to real time when left nil.
func New(cfg Config) *RateLimiter {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	return &RateLimiter{
		permits:    cfg.Capacity,
		fillRate:   cfg.FillRate,
		capacity:   cfg.Capacity,
		lastRefill: clock.Now(),
		clock:      clock,
		sleeper:    sleeper,
	}
}

// refillLocked computes accumulated permits since lastRefill. Caller
// must hold mu.
func (r *RateLimiter) refillLocked() {
	now := r.clock.Now()
	elapsed := now.Sub(r.lastRefill)
	if elapsed <= 0 {
		return
	}
	r.permits = min(r.capacity, r.permits+elapsed.Seconds()*r.fillRate)
	r.lastRefill = now
}


// Acquire blocks cooperatively until n permits are available, then
// decrements them. It never blocks forever as long as fillRate > 0 and
// n <= capacity; permits never exceed capacity, so a request for more
// than capacity never succeeds.
func (r *RateLimiter) Acquire(n float64) {
	for {
		r.mu.Lock()
		r.refillLocked()
		if r.permits >= n {
			r.permits -= n
			r.mu.Unlock()
			return
		}
		deficit := n - r.permits
		fillRate := r.fillRate
		r.mu.Unlock()

		wait := time.Duration(0)
		if fillRate > 0 {
			wait = time.Duration(deficit / fillRate * float64(time.Second))
		}
		if wait <= 0 {
			wait = time.Millisecond
		}
		r.sleeper.Sleep(wait)
	}
}

// TryAcquire attempts to acquire n permits without blocking, reporting
// whether it succeeded.
func (r *RateLimiter) TryAcquire(n float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refillLocked()
	if r.permits < n {
		return false
	}
	r.permits -= n
	return true
}

// SetFillRate updates the refill rate atomically without losing
// permits already accumulated.
func (r *RateLimiter) SetFillRate(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refillLocked()
	r.fillRate = rate
}
