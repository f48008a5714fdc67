package router

import (
	"ciphercore.app/convo/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func AgentRouter(rg *gin.RouterGroup, h *handler.AgentHandler) {
	rg.GET("", h.List)
	rg.GET("/schema", h.Schema)
}

// RunRouter sets up run routes
// - POST "" streams a run as SSE, or queues it when background is set
// - GET /:run_id/stream follows a queued run
func RunRouter(rg *gin.RouterGroup, h *handler.RunHandler) {
	rg.POST("", h.Start)
	rg.GET("/:run_id/stream", h.Stream)
}

func RatingRouter(rg *gin.RouterGroup, h *handler.RatingHandler) {
	rg.POST("", h.Rate)
	rg.GET("", h.Get)
}

func TranscriptRouter(rg *gin.RouterGroup, h *handler.TranscriptHandler) {
	rg.GET("", h.List)
	rg.GET("/:run_id", h.Get)
}
