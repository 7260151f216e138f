package rate_limiter

import (
	"sync"
	"time"

	"github/martinmaurice/apipoller/pkg/enum"
)

// TokenBucket admits at most Capacity requests per RefillInterval. The refill
// is a full reset once the interval has elapsed, never partial credit, so an
// idle bucket never holds more than Capacity tokens.
type TokenBucket struct {
	Capacity       int           // max tokens allowed in the bucket
	RefillInterval time.Duration // the bucket is reset to Capacity once this much time has passed since the last reset

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	now        func() time.Time
}

func NewTokenBucket(capacity int, refillInterval time.Duration) *TokenBucket {
	return newTokenBucket(capacity, refillInterval, time.Now)
}

func newTokenBucket(capacity int, refillInterval time.Duration, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		Capacity:       capacity,
		RefillInterval: refillInterval,
		tokens:         capacity,
		lastRefill:     now(),
		now:            now,
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	if now.Before(tb.lastRefill.Add(tb.RefillInterval)) {
		return
	}
	tb.tokens = tb.Capacity
	tb.lastRefill = now
}

// Allow consumes one token if any is left. A denied request must be dropped, not retried.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.now())
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) State() State {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return State{
		Algorithm:  enum.TokenBucket.String(),
		Capacity:   tb.Capacity,
		Remaining:  tb.tokens,
		LastRefill: tb.lastRefill,
		NextRefill: tb.lastRefill.Add(tb.RefillInterval),
	}
}
