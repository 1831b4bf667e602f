package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────
// Bearer token authentication middleware.
//
// Reads its token from config.SecurityConfig.AuthToken (RETE_SECURITY__AUTH_TOKEN),
// not directly from the environment, so the rest of config.AppConfig's
// validation (required_if=AuthRequired true) governs whether a missing
// token is a startup error rather than a silently-open API.
// ──────────────────────────────────────────────────────────────────

// AuthMiddleware validates bearer tokens when required is true. When
// required is false every request passes through unauthenticated
// (development mode).
func AuthMiddleware(required bool, token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !required {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
				"hint":  "use: Authorization: Bearer <token>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid Authorization header format"})
			c.Abort()
			return
		}

		// Constant-time comparison prevents timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
