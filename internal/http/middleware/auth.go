// README: Firebase bearer-token auth middleware and caller accessors.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/infra"
)

const (
	ctxKeyUID       = "caller_uid"
	ctxKeyRole      = "caller_role"
	ctxKeyAnonymous = "caller_anonymous"

	// AnonymousUID identifies callers when no verifier is configured.
	AnonymousUID = "anonymous"
)

// Auth verifies the Firebase ID token in the Authorization header and stores
// the caller's uid and role claim on the context. A nil verifier disables
// authentication and every caller is AnonymousUID.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Set(ctxKeyUID, AnonymousUID)
			c.Set(ctxKeyAnonymous, true)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		verified, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil || verified == nil || verified.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxKeyUID, verified.UID)
		if verified.Role != "" {
			c.Set(ctxKeyRole, verified.Role)
		}
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role claim differs from role.
// Anonymous mode lets everyone through.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ctxKeyAnonymous) || CallerRole(c) == role {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// CallerUID returns the verified caller uid, or "" outside Auth.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxKeyUID)
}

// CallerRole returns the caller's role claim, or "".
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxKeyRole)
}
