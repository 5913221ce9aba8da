package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	APIKeyHeader   = "heysheet-api-key"
	AdminKeyHeader = "X-Admin-Key"
	UserIDHeader   = "X-User-ID"
)

// validKey reports whether key equals one of allowed, in constant time per entry.
func validKey(key string, allowed []string) bool {
	if key == "" {
		return false
	}
	ok := false
	for _, candidate := range allowed {
		if subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			ok = true
		}
	}
	return ok
}

// RequireAPIKey rejects requests without a configured heysheet-api-key.
func RequireAPIKey(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validKey(c.GetHeader(APIKeyHeader), keys) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// RequireAdminKey guards operator endpoints. An empty key disables them.
func RequireAdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin API is disabled"})
			return
		}
		if !validKey(c.GetHeader(AdminKeyHeader), []string{key}) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
