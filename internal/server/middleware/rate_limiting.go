package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

const (
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
)

// RateLimitMiddleware admits requests through limiter and rejects the rest
// with 429. The API shares one bucket across all clients.
func RateLimitMiddleware(limiter rate_limiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok := limiter.Allow()
		state := limiter.State()
		c.Header(RateLimitLimitHeader, strconv.Itoa(state.Capacity))
		c.Header(RateLimitRemainingHeader, strconv.Itoa(state.Remaining))

		if ok {
			c.Next()
			return
		}

		slog.Info("Request not allowed", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
		if retryAfter := retryAfterSeconds(state); retryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}

func retryAfterSeconds(state rate_limiter.State) int {
	if state.NextRefill.IsZero() {
		return 0
	}
	return int(math.Ceil(time.Until(state.NextRefill).Seconds()))
}
