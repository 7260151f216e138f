package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/apipoller/internal/server/middleware"
)

func healthHandler(ctx *gin.Context) {
	logger := slog.With("handler", "health")
	if queueTime, ok := middleware.QueueTime(ctx); ok {
		logger.Debug("Queue Time (us)", "queueTime", queueTime.Microseconds())
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
