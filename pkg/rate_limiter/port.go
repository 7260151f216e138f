package rate_limiter

import (
	"context"
)

// RateLimiter is the admission control of one logical API client.
type RateLimiter interface {
	Allow() bool
	State() State
}

// Throttled is the capability every source client depends on: a rate limiter
// composed with an HTTP transport.
type Throttled interface {
	Allow() bool
	PerformRequest(ctx context.Context, req Request) (*Response, error)
}
