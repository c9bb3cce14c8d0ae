package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/domain/identity"
)

// RequireRole admits callers whose viewer matches one of allowed. It must run
// after RequireAuth; without a viewer the request is refused.
func RequireRole(allowed ...identity.Role) gin.HandlerFunc {
	allowBank, allowAgent := false, false
	for _, role := range allowed {
		switch role {
		case identity.RoleBank:
			allowBank = true
		case identity.RoleAgent:
			allowAgent = true
		}
	}

	return func(c *gin.Context) {
		viewer, ok := ViewerFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		switch viewer.(type) {
		case identity.Bank:
			ok = allowBank
		case identity.Agent:
			ok = allowAgent
		default:
			ok = false
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
