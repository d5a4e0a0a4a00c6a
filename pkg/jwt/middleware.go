package jwt

import (
	"net/http"
	"strings"

	"banking-chatbot/engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware returns a gin middleware that requires a valid bearer token.
// Used by the ops API group only; channel endpoints are authenticated by the
// provider, not by this service.
func AuthMiddleware(service *Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := service.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			log.Warn("rejected ops token", "error", err.Error(), "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("operator", claims.Subject)
		c.Next()
	}
}
