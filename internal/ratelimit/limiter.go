package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces requests so that consecutive grants are at least interval
// apart. The gap is measured from the previous grant, so time spent on the
// request itself counts toward the wait.
type Limiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	granted  int64
	waited   time.Duration
	now      func() time.Time
}

func NewLimiter(interval time.Duration) *Limiter {
	if interval < 0 {
		interval = 0
	}
	return &Limiter{
		interval: interval,
		now:      time.Now,
	}
}

// reserve claims the next slot and returns how long the caller must wait for it.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	next := l.last.Add(l.interval)
	if l.last.IsZero() || !next.After(now) {
		l.last = now
		l.granted++
		return 0
	}
	l.last = next
	l.granted++
	wait := next.Sub(now)
	l.waited += wait
	return wait
}

// Wait blocks until the next slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait := l.reserve()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset forgets the previous grant so the next Wait returns immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Time{}
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Stats returns how many slots were granted and the total time callers were held back.
func (l *Limiter) Stats() (granted int64, waited time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.granted, l.waited
}
