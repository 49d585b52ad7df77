package safety

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket used to pace outbound API calls. Both the
// market data client and the trade executor hold one so a burst of
// cycle activity never trips a provider-side rate limit.
type Limiter struct {
	mu         sync.Mutex
	name       string
	capacity   int
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewLimiter creates a full bucket of the given capacity, refilled at
// refillRate tokens per second.
func NewLimiter(name string, capacity int, refillRate float64) *Limiter {
	return &Limiter{
		name:       name,
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		l.mu.Lock()
		deficit := 1 - l.tokens
		wait := time.Duration(deficit/l.refillRate*float64(time.Second)) + 10*time.Millisecond
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Tokens reports the current token count, for diagnostics.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(time.Now())
	return l.tokens
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > float64(l.capacity) {
		l.tokens = float64(l.capacity)
	}
	l.lastRefill = now
}
