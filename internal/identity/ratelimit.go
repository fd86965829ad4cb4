package identity

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimiter throttles credential attempts per identifier (email or
// phone) with a token bucket each.
type AttemptLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewAttemptLimiter allows n attempts per minute per identifier.
func NewAttemptLimiter(perMinute int) *AttemptLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &AttemptLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// Allow reports whether another attempt for the identifier may proceed.
func (l *AttemptLimiter) Allow(identifier string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[identifier]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[identifier] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
