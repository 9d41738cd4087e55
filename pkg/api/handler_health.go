package api

import "github.com/gin-gonic/gin"

// healthHandler handles GET /. A minimal, unauthenticated liveness check —
// per-namespace health lives behind the authenticated context endpoint.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(200, HealthResponse{Status: "ok", Service: "monument"})
}
