package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token-bucket rate limiter. Buckets are created on
// first use with the capacity and refill rate passed by the caller.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*bucket
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket)}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Sweep drops buckets idle longer than maxIdle so per-client keying cannot
// grow without bound. Callers run it on a timer.
func (l *Limiter) Sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.m {
		if b.last.Before(cutoff) {
			delete(l.m, k)
		}
	}
}
