package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/auth"
	"github.com/loanrecovery/backend/internal/domain/identity"
)

const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextSessionID = "session_id"
	ContextViewer    = "viewer"
)

// SessionChecker reports whether a token's session is still live.
type SessionChecker interface {
	SessionActive(ctx context.Context, sessionID string) error
}

// RequireAuth accepts the access cookie and, when allowBearer is set, an
// Authorization bearer token. sessions may be nil to skip revocation checks.
func RequireAuth(jwt *auth.JWTManager, sessions SessionChecker, allowBearer bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.AccessToken(c.Request, allowBearer)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := jwt.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		role, ok := identity.ParseRole(string(claims.Role))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if sessions != nil {
			if err := sessions.SessionActive(c.Request.Context(), claims.SessionID); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		}

		viewer, _ := identity.ViewerFor(claims.UserID, role)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, string(role))
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextViewer, viewer)
		c.Next()
	}
}

// ViewerFrom returns the capability value placed by RequireAuth.
func ViewerFrom(c *gin.Context) (identity.Viewer, bool) {
	v, ok := c.Get(ContextViewer)
	if !ok {
		return nil, false
	}
	viewer, ok := v.(identity.Viewer)
	return viewer, ok
}
