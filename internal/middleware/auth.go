package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/monday-task-gateway/internal/errors"
)

// RequireAPIKey checks the gateway API key on every request. An empty
// configured key disables authentication (local development).
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			provided = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
