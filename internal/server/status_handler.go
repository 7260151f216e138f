package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/apipoller/internal/poller"
	"github/martinmaurice/apipoller/pkg/enum"
)

type (
	statusServicer interface {
		All() []poller.StatusSnapshot
		Get(source enum.Source) (poller.StatusSnapshot, bool)
	}
	statusResponseDTO struct {
		Version int                     `json:"version"`
		Env     string                  `json:"env"`
		Sources []poller.StatusSnapshot `json:"sources"`
	}
)

func statusHandler(s statusServicer, version int, env string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, statusResponseDTO{
			Version: version,
			Env:     env,
			Sources: s.All(),
		})
	}
}

func statusBySourceHandler(s statusServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		source := enum.Source(ctx.Param("source"))
		snap, ok := s.Get(source)
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown source " + string(source)})
			return
		}
		ctx.JSON(http.StatusOK, snap)
	}
}
