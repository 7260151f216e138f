package rate_limiter

import (
	"math"
	"sync"
	"time"

	"github/martinmaurice/apipoller/pkg/enum"
)

// LeakyBucket admits a request while the bucket has room for it. The level
// drains continuously at LeakRate requests per second.
type LeakyBucket struct {
	Capacity int     // max requests the bucket can hold
	LeakRate float64 // number of requests drained per second

	mu       sync.Mutex
	level    float64
	lastLeak time.Time
	now      func() time.Time
}

func NewLeakyBucket(capacity int, leakRate float64) *LeakyBucket {
	return newLeakyBucket(capacity, leakRate, time.Now)
}

func newLeakyBucket(capacity int, leakRate float64, now func() time.Time) *LeakyBucket {
	return &LeakyBucket{
		Capacity: capacity,
		LeakRate: leakRate,
		lastLeak: now(),
		now:      now,
	}
}

func (lb *LeakyBucket) leak(now time.Time) {
	elapsed := now.Sub(lb.lastLeak).Seconds()
	if elapsed <= 0 {
		return
	}
	lb.level = math.Max(0, lb.level-elapsed*lb.LeakRate)
	lb.lastLeak = now
}

func (lb *LeakyBucket) Allow() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.leak(lb.now())
	if lb.level+1 <= float64(lb.Capacity) {
		lb.level++
		return true
	}
	return false
}

func (lb *LeakyBucket) State() State {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	next := lb.lastLeak
	if excess := lb.level + 1 - float64(lb.Capacity); excess > 0 && lb.LeakRate > 0 {
		next = next.Add(time.Duration(excess / lb.LeakRate * float64(time.Second)))
	}

	return State{
		Algorithm:  enum.LeakyBucket.String(),
		Capacity:   lb.Capacity,
		Remaining:  int(math.Floor(float64(lb.Capacity) - lb.level)),
		LastRefill: lb.lastLeak,
		NextRefill: next,
	}
}
