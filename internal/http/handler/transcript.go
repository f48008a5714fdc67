package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"ciphercore.app/convo/internal/http/dto"
	"ciphercore.app/convo/internal/service"
	"ciphercore.app/convo/internal/store"
	"github.com/gin-gonic/gin"
)

type TranscriptHandler struct {
	transcripts service.TranscriptService
}

func NewTranscriptHandler(transcripts service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// List returns stored runs, newest first. Without owner_id every run is listed.
func (h *TranscriptHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var owner *string
	if v, ok := c.GetQuery("owner_id"); ok && v != "" {
		owner = &v
	}

	runs, err := h.transcripts.List(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list transcripts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transcripts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcripts": dto.ToTranscriptResponses(runs)})
}

func (h *TranscriptHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("run_id")

	run, err := h.transcripts.Get(ctx, runID)
	if err == nil && run == nil {
		err = store.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load transcript", "error", err, "run_id", runID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transcript"})
		return
	}

	c.JSON(http.StatusOK, dto.ToTranscriptResponse(*run))
}
