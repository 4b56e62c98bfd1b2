// Package ratelimit implements the shared token bucket that meters every
// outbound call to an upstream reservation platform.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pollQuantum bounds how long a waiter sleeps before re-checking the bucket.
// Short polls trade strict FIFO fairness for simplicity: every waiter
// recomputes its own deficit each round, so starvation is bounded even
// though a newcomer can slip in ahead of a longer-waiting acquirer.
const pollQuantum = 50 * time.Millisecond

// Limiter is a thread-safe token bucket. One instance is constructed at
// process start and injected everywhere a request budget is charged; no
// component talks to an upstream platform without taking a token from it.
type Limiter struct {
	mu       sync.Mutex
	tokens   float64
	last     time.Time
	rate     float64 // tokens refilled per second
	capacity float64 // burst ceiling

	now func() time.Time
}

// New returns a bucket that refills at rate tokens per second up to
// capacity. A non-positive capacity defaults to 2*rate. The bucket starts
// full.
func New(rate, capacity float64) *Limiter {
	if capacity <= 0 {
		capacity = 2 * rate
	}
	l := &Limiter{
		rate:     rate,
		capacity: capacity,
		tokens:   capacity,
		now:      time.Now,
	}
	l.last = l.now()
	return l
}

// refill advances the bucket to now. Caller holds mu.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}
	l.last = now
}

// TryAcquire takes one token if available and reports whether it did.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or ctx is done. The caller's
// deadline bounds the wait; on expiry the ctx error is returned and the
// bucket is left untouched.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		// Wait only as long as the current deficit needs, capped by the
		// poll quantum so concurrent acquirers keep re-contending.
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()
		if wait > pollQuantum {
			wait = pollQuantum
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Tokens reports the balance after refilling to now.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}
