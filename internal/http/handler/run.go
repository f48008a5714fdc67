package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/http/dto"
	"ciphercore.app/convo/internal/queue"
	"ciphercore.app/convo/internal/service"
	"github.com/gin-gonic/gin"
)

const defaultStreamBlock = 25 * time.Second

// RunStreamReader is satisfied by *queue.RunStream.
type RunStreamReader interface {
	Read(ctx context.Context, runID, lastID string, block time.Duration) ([]queue.RunStreamEntry, error)
}

type RunHandler struct {
	runs   service.ConversationService
	stream RunStreamReader
	block  time.Duration
}

// NewRunHandler wires the run endpoints. stream may be nil when redis is not configured.
func NewRunHandler(runs service.ConversationService, stream RunStreamReader) *RunHandler {
	return &RunHandler{runs: runs, stream: stream, block: defaultStreamBlock}
}

// WithStreamBlock overrides how long one stream read waits before a keepalive ping.
func (h *RunHandler) WithStreamBlock(d time.Duration) *RunHandler {
	h.block = d
	return h
}

// Start validates the request and either streams the run as SSE or, for
// background runs, queues it and answers 202 with the run id.
func (h *RunHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	var body dto.StartRunRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := body.ToService()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if body.Background {
		runID, err := h.runs.Enqueue(ctx, req)
		if err != nil {
			h.writeStartError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.StartRunResponse{
			RunID:     runID,
			StreamURL: "/api/v1/runs/" + runID + "/stream",
		})
		return
	}

	run, err := h.runs.Start(ctx, req)
	if err != nil {
		h.writeStartError(c, err)
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(run.ID()),
		OwnerID:   req.OwnerID,
		Component: "convo.http.run",
	})

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	// a client disconnect cancels ctx, which stops the run after the current turn
	for u := range run.Updates(ctx) {
		if u.Final() {
			sseWrite(c.Writer, string(queue.RunEventDone), u.DoneEvent())
		} else {
			sseWrite(c.Writer, string(queue.RunEventTurn), u.TurnEvent())
		}
		flusher.Flush()
	}

	if _, done := run.Result(); !done {
		slog.InfoContext(ctx, "run stream ended before completion", "state", run.State())
	}
}

func (h *RunHandler) writeStartError(c *gin.Context, err error) {
	var vErr *brain.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, service.ErrBackgroundDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "background runs are not available"})
	default:
		slog.ErrorContext(c.Request.Context(), "failed to start run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
	}
}

// Stream relays a background run's update stream as SSE until the run finishes
// or the client goes away. last_id resumes after an already seen entry.
func (h *RunHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis not configured"})
		return
	}

	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing run_id"})
		return
	}

	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = c.GetHeader("Last-Event-ID")
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	sseWrite(c.Writer, "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		entries, err := h.stream.Read(ctx, runID, lastID, h.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "run stream read failed", "error", err, "run_id", runID)
			sseWrite(c.Writer, "error", map[string]string{"error": "stream read failed"})
			flusher.Flush()
			return
		}

		if len(entries) == 0 {
			sseWrite(c.Writer, "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, e := range entries {
			lastID = e.ID
			sseWriteID(c.Writer, e.ID, string(e.Event), e.Data)
			flusher.Flush()
			if e.Event.Terminal() {
				return
			}
		}
	}
}
