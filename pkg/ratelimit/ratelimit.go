// Package ratelimit implements a sliding-window admission control: a FIFO
// log of admission timestamps bounded by a capacity and a window duration.
// Unlike a token bucket, every admission is evicted exactly `window` after
// it was recorded, which is what lets Admit guarantee FIFO ordering across
// concurrent waiters.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/corvidlabs/rawcore/pkg/constants"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// Limiter enforces a sliding-window request budget.
type Limiter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	window   time.Duration
	capacity int
	log      *list.List // FIFO queue of admission timestamps (time.Time)
}

// New returns a Limiter admitting at most capacity requests per window.
func New(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = constants.DefaultRateLimitRequests
	}
	if window <= 0 {
		window = constants.DefaultRateLimitWindow
	}
	l := &Limiter{window: window, capacity: capacity, log: list.New()}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// evictExpired removes timestamps older than now-window. Caller must hold
// l.mu.
func (l *Limiter) evictExpired(now time.Time) {
	for e := l.log.Front(); e != nil; {
		next := e.Next()
		if now.Sub(e.Value.(time.Time)) >= l.window {
			l.log.Remove(e)
		} else {
			break // log is time-ordered; nothing after e can be expired yet
		}
		e = next
	}
}

// Admit blocks (cooperatively, via ctx) until admission is granted, then
// records now. Waiters are served in FIFO order: each woken waiter
// re-evicts and either admits or waits for the next expiry.
func (l *Limiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := time.Now()
		l.evictExpired(now)

		if l.log.Len() < l.capacity {
			l.log.PushBack(now)
			l.cond.Signal()
			return nil
		}

		if ctx.Err() != nil {
			return rawerr.NewCancelledError("rate-limit-admit", ctx.Err())
		}

		oldest := l.log.Front().Value.(time.Time)
		wait := l.window - now.Sub(oldest)
		if wait < 0 {
			wait = 0
		}

		if !l.waitFor(ctx, wait) {
			return rawerr.NewCancelledError("rate-limit-admit", ctx.Err())
		}
	}
}

// waitFor blocks until either the condition variable is signaled, wait
// elapses, or ctx is cancelled. l.mu must be held on entry and is held
// again on return. Returns false on cancellation.
func (l *Limiter) waitFor(ctx context.Context, wait time.Duration) bool {
	wake := func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	}
	stopCtx := context.AfterFunc(ctx, wake)
	defer stopCtx()
	timer := time.AfterFunc(wait, wake)
	defer timer.Stop()

	l.cond.Wait()
	return ctx.Err() == nil
}

// Len reports the number of admissions currently counted in the window
// (diagnostic use only; may be stale immediately after the call returns).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictExpired(time.Now())
	return l.log.Len()
}
