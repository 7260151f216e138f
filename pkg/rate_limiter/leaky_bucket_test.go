package rate_limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeakyBucket_Allow(t *testing.T) {
	tests := []struct {
		id      string
		level   float64
		elapsed time.Duration
		want    bool
	}{
		{
			id:   "Allow request because the bucket is empty",
			want: true,
		},
		{
			id:    "Allow request because the bucket is not full yet",
			level: 1,
			want:  true,
		},
		{
			id:    "Disallow request because the bucket is full",
			level: 2,
			want:  false,
		},
		{
			id:      "Allow request because the bucket leaked enough due to elapsed time",
			level:   2,
			elapsed: time.Second,
			want:    true,
		},
		{
			id:      "Disallow request because the bucket did not leak a whole request yet",
			level:   2,
			elapsed: 500 * time.Millisecond,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			clock := newFakeClock()
			lb := newLeakyBucket(2, 1.0, clock.Now)
			lb.level = tt.level
			clock.Advance(tt.elapsed)

			assert.Equal(t, tt.want, lb.Allow())
		})
	}
}

func TestLeakyBucket_State(t *testing.T) {
	clock := newFakeClock()
	lb := newLeakyBucket(4, 1.0, clock.Now)
	lb.Allow()
	lb.Allow()

	state := lb.State()
	assert.Equal(t, "leaky_bucket", state.Algorithm)
	assert.Equal(t, 4, state.Capacity)
	assert.Equal(t, 2, state.Remaining)
	assert.Equal(t, clock.Now(), state.NextRefill, "room left, nothing to wait for")

	lb.Allow()
	lb.Allow()
	assert.Equal(t, clock.Now().Add(time.Second), lb.State().NextRefill)
}
