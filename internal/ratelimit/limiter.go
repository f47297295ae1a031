// Package ratelimit provides per-key token bucket limiting for the operations
// that reach a reasoning backend.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nvandessel/alliance/internal/models"
)

// Limiter is a token bucket keyed by caller-chosen strings (a simulation id, a
// client address). Each key starts with a full bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// PerMinute is a convenience constructor for n requests per minute.
func PerMinute(n float64, burst int) *Limiter {
	return NewLimiter(n/60.0, burst)
}

// refill brings key's bucket up to date. Callers hold l.mu.
func (l *Limiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) bool {
	_, ok := l.Take(key)
	return ok
}

// Take consumes one token for key. When none is available it reports how long
// until one will be.
func (l *Limiter) Take(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key, l.nowFunc())
	if b.tokens >= 1.0 {
		b.tokens--
		return 0, true
	}
	if l.rate <= 0 {
		return time.Duration(math.MaxInt64), false
	}
	wait := (1.0 - b.tokens) / l.rate
	return time.Duration(wait * float64(time.Second)), false
}

// Sweep drops buckets untouched for at least idle. A dropped key starts over
// with a full bucket.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.nowFunc().Add(-idle)
	n := 0
	for k, b := range l.buckets {
		if !b.lastCheck.After(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Operation names shared by the HTTP and MCP surfaces.
const (
	OpStart = "start"
	OpRound = "round"
	OpChat  = "chat"
	OpRead  = "read"
)

// Limits holds one limiter per operation.
type Limits map[string]*Limiter

// DefaultLimits returns the stock limits. Rounds and chat call the reasoning
// backend, so they are the tightest.
func DefaultLimits() Limits {
	return Limits{
		OpStart: PerMinute(30, 5),
		OpRound: PerMinute(20, 3),
		OpChat:  PerMinute(20, 5),
		OpRead:  NewLimiter(5.0, 20),
	}
}

// Check consumes a token for (op, key). Operations without a limiter are
// unlimited.
func (ls Limits) Check(op, key string) error {
	l, ok := ls[op]
	if !ok {
		return nil
	}
	wait, ok := l.Take(op + ":" + key)
	if ok {
		return nil
	}
	return &models.Error{
		Kind:   models.KindRateLimited,
		Field:  op,
		Reason: fmt.Sprintf("rate limit exceeded, retry in %s", wait.Round(time.Second)),
	}
}
