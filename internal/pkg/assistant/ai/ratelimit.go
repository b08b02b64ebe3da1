package ai

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError reports an admission denial and how long until the window
// frees up. Callers surface it to the user; they must not retry within the turn.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("ai: rate limited, retry in %d seconds", int(e.Wait.Seconds()+0.5))
}

// RateLimiter is a sliding-window admission guard for outbound model calls.
// One instance is shared process-wide across all sessions: the window is a
// global budget for the external API, not a per-conversation one.
type RateLimiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time

	now func() time.Time // overridable in tests
}

// NewRateLimiter builds a limiter admitting at most maxCalls per period.
func NewRateLimiter(maxCalls int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls: maxCalls,
		period:   period,
		now:      time.Now,
	}
}

// Allow records and admits the call, or returns *RateLimitError with the time
// until the oldest recorded call falls out of the window.
func (l *RateLimiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Evict timestamps older than the window.
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.period {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	if len(l.calls) >= l.maxCalls {
		wait := l.period - now.Sub(l.calls[0])
		if wait < 0 {
			wait = 0
		}
		return &RateLimitError{Wait: wait}
	}

	l.calls = append(l.calls, now)
	return nil
}
