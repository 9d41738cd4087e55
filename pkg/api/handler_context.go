package api

import (
	"crypto/subtle"
	"strconv"

	"github.com/gin-gonic/gin"

	monctx "github.com/usize/monument/pkg/context"
	"github.com/usize/monument/pkg/monumenterr"
	"github.com/usize/monument/pkg/store"
)

// contextHandler handles GET /sim/{namespace}/agent/{agent_id}/context.
func (s *Server) contextHandler(c *gin.Context) {
	namespace := c.Param("namespace")
	agentID := c.Param("agent_id")

	if err := store.ValidateNamespace(namespace); err != nil {
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}

	st, err := s.registry.Open(c.Request.Context(), namespace)
	if err != nil {
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}

	actor, err := st.GetActor(c.Request.Context(), agentID)
	if err != nil {
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}
	if !actor.Live() || subtle.ConstantTimeCompare([]byte(actor.Secret), []byte(extractAgentSecret(c))) != 1 {
		status, body := mapError(monumenterr.ErrAuthFailed)
		c.JSON(status, body)
		return
	}

	historyLength := monctx.ClampHistoryLength(queryInt(c, "history_length"))
	chatLength := monctx.ClampChatLength(queryInt(c, "chat_length"), historyLength)

	snapshot, err := s.builder.Build(c.Request.Context(), st, namespace, agentID, historyLength, chatLength)
	if err != nil {
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(200, ContextResponse{
		Namespace:   snapshot.Namespace,
		SuperTick:   snapshot.SuperTick,
		ContextHash: snapshot.ContextHash,
		Phase:       string(snapshot.Phase),
		HUD:         snapshot.HUD,
	})
}

func queryInt(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
