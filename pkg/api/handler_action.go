package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/usize/monument/pkg/admission"
	"github.com/usize/monument/pkg/monumenterr"
)

// actionHandler handles POST /sim/{namespace}/agent/{agent_id}/action.
func (s *Server) actionHandler(c *gin.Context) {
	namespace := c.Param("namespace")
	agentID := c.Param("agent_id")

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		status, body := mapError(monumenterr.NewValidationError("action", err.Error()))
		c.JSON(status, body)
		return
	}

	result, err := s.admitter.Submit(c.Request.Context(), namespace, agentID, extractAgentSecret(c), admission.Submission{
		Namespace:   req.Namespace,
		SuperTick:   req.SuperTick,
		ContextHash: req.ContextHash,
		Action:      req.Action,
		LLMInput:    req.LLMInput,
		LLMOutput:   req.LLMOutput,
	})
	if err != nil {
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}

	message := "Action accepted"
	if result.Merged {
		message = fmt.Sprintf("Tick advanced: %d → %d", result.OldTick, result.NewTick)
	}
	c.JSON(200, ActionResponse{Success: true, Message: message})
}
