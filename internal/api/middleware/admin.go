// Package middleware holds the gin middleware layered onto the exchange's
// HTTP surface: admin-key auth and rate limiting.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminAuth rejects requests that don't present the configured shared
// secret as x-admin-key or x-api-key. The comparison is constant-time.
func AdminAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "admin endpoints are disabled: ADMIN_API_KEY not configured"})
			return
		}
		presented := c.GetHeader("x-admin-key")
		if presented == "" {
			presented = c.GetHeader("x-api-key")
		}
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing admin key"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "invalid admin key"})
			return
		}
		c.Next()
	}
}
