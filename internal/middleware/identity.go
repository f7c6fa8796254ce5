package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IdentityMiddleware resolves the opaque caller identity from request
// headers. Authentication happens upstream of this service; requests only
// need to carry who they act as.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		c.Set("userID", userID)
		c.Set("userName", c.GetHeader("X-User-Name"))
		c.Next()
	}
}
