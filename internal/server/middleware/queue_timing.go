package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const ReqArrivalTimeContextValueKey = "reqArrivalTime"

// QueueTimeMiddleware stamps the arrival time of each request and logs how
// long it took once the handlers are done.
func QueueTimeMiddleware(c *gin.Context) {
	arrival := time.Now()
	c.Set(ReqArrivalTimeContextValueKey, arrival)
	c.Next()

	slog.Debug("request served",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration_us", time.Since(arrival).Microseconds(),
	)
}

// QueueTime returns how long ago the request arrived, if it was stamped.
func QueueTime(c *gin.Context) (time.Duration, bool) {
	v, exists := c.Get(ReqArrivalTimeContextValueKey)
	if !exists {
		return 0, false
	}
	arrival, ok := v.(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(arrival), true
}
