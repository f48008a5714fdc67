package handler

import (
	"net/http"

	"ciphercore.app/convo/internal/http/dto"
	"ciphercore.app/convo/internal/roster"
	"ciphercore.app/convo/internal/service"
	"github.com/gin-gonic/gin"
)

type AgentHandler struct {
	runs service.ConversationService
}

func NewAgentHandler(runs service.ConversationService) *AgentHandler {
	return &AgentHandler{runs: runs}
}

func (h *AgentHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": dto.ToAgentResponses(h.runs.Agents())})
}

// Schema serves the JSON schema of the roster file.
func (h *AgentHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, roster.Schema())
}
