package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"ciphercore.app/convo/internal/http/dto"
	"ciphercore.app/convo/internal/ledger"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/service"
	"github.com/gin-gonic/gin"
)

type RatingHandler struct {
	ratings service.RatingService
}

func NewRatingHandler(ratings service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

func (h *RatingHandler) Rate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: run_id, iteration, agent and kind are required"})
		return
	}

	key := req.Key()
	counters, err := h.ratings.Rate(ctx, key, model.ParseVoteKind(req.Kind))
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidVote) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to record vote", "error", err, "run_id", key.RunID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record vote"})
		return
	}

	c.JSON(http.StatusOK, dto.ToRatingResponse(key, counters))
}

func (h *RatingHandler) Get(c *gin.Context) {
	var q dto.RatingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: run_id, iteration and agent are required"})
		return
	}

	key := q.Key()
	c.JSON(http.StatusOK, dto.ToRatingResponse(key, h.ratings.Get(c.Request.Context(), key)))
}
