package api

import (
	"github.com/gin-gonic/gin"
)

// agentSecretHeader is the header carrying an agent's bearer secret,
// generalized from the teacher's oauth2-proxy forwarded-header extraction
// (pkg/api/auth.go) to a single dedicated secret header (spec §4.5: "Bearer
// secret is passed out-of-band in a dedicated header; never in the URL or
// body"). The constant-time comparison against the stored secret happens in
// pkg/admission, which is the only place that has the stored value.
const agentSecretHeader = "X-Agent-Secret"

// extractAgentSecret reads the agent secret header from the request.
func extractAgentSecret(c *gin.Context) string {
	return c.GetHeader(agentSecretHeader)
}
