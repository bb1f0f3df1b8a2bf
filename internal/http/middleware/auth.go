// README: Identity middleware; verifies Firebase ID tokens and exposes actor info.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lifton/internal/infra"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxUserID = "auth_uid"
	CtxRole   = "auth_role"
)

// Auth classifies the caller as a specific user/driver/admin. With a
// verifier configured it requires a Firebase bearer token; without one it
// trusts gateway-style headers, which is only acceptable behind a trusted
// proxy or in local development.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			uid := c.GetHeader("X-User-ID")
			if uid == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
				return
			}
			role := c.GetHeader("X-Role")
			if role == "" {
				role = "user"
			}
			c.Set(CtxUserID, uid)
			c.Set(CtxRole, role)
			c.Next()
			return
		}

		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" || raw == c.GetHeader("Authorization") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		role := "user"
		if v, ok := token.Claims["role"].(string); ok && v != "" {
			role = v
		}
		c.Set(CtxUserID, token.UID)
		c.Set(CtxRole, role)
		c.Next()
	}
}

// RequireRole gates a route group on the role claim.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
