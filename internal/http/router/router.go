package router

import (
	"ciphercore.app/convo/internal/http/handler"
	"ciphercore.app/convo/internal/http/middleware"
	"ciphercore.app/convo/internal/service"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	TraceHeaderName string
	// RunStream is nil when redis is not configured; the stream endpoint then answers 503.
	RunStream handler.RunStreamReader
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.Use(middleware.TraceHeader(cfg.TraceHeaderName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		conversations := services.Conversations()

		AgentRouter(v1.Group("/agents"), handler.NewAgentHandler(conversations))
		RunRouter(v1.Group("/runs"), handler.NewRunHandler(conversations, cfg.RunStream))
		RatingRouter(v1.Group("/ratings"), handler.NewRatingHandler(services.Ratings()))
		TranscriptRouter(v1.Group("/transcripts"), handler.NewTranscriptHandler(services.Transcripts()))
	}
}
