package carrier

import (
	"context"
	"sync"
	"time"
)

// DefaultCooldown is how long a carrier is refused after it answered 429.
const DefaultCooldown = time.Hour

// Limiter admits or refuses carrier calls. It is a coarse circuit breaker:
// CanCall and RecordCall are separate steps, so concurrent callers can all
// pass CanCall before any of them records a 429.
type Limiter interface {
	CanCall(ctx context.Context, carrierCode string) bool
	RecordCall(ctx context.Context, carrierCode string, wasRateLimited bool)
}

type rateState struct {
	resetTime  time.Time
	lastCallAt time.Time
}

// CircuitLimiter keeps per-carrier state in process memory.
type CircuitLimiter struct {
	mu       sync.Mutex
	states   map[string]*rateState
	cooldown time.Duration
	now      func() time.Time
}

func NewCircuitLimiter() *CircuitLimiter {
	return &CircuitLimiter{
		states:   make(map[string]*rateState),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (l *CircuitLimiter) WithClock(now func() time.Time) *CircuitLimiter {
	l.now = now
	return l
}

func (l *CircuitLimiter) CanCall(_ context.Context, carrierCode string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[carrierCode]
	if !ok {
		return true
	}
	if l.now().After(st.resetTime) {
		delete(l.states, carrierCode)
		return true
	}
	return false
}

func (l *CircuitLimiter) RecordCall(_ context.Context, carrierCode string, wasRateLimited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st, ok := l.states[carrierCode]
	if !ok {
		if !wasRateLimited {
			return
		}
		st = &rateState{}
		l.states[carrierCode] = st
	}
	st.lastCallAt = now
	if wasRateLimited {
		st.resetTime = now.Add(l.cooldown)
	}
}

// ResetTime reports when carrierCode becomes callable again.
func (l *CircuitLimiter) ResetTime(carrierCode string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.states[carrierCode]
	if !ok {
		return time.Time{}, false
	}
	return st.resetTime, true
}
