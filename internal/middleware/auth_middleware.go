// internal/middleware/auth_middleware.go
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"fleetcheck-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware gates the admin API behind a static key. Full
// authentication lives in the platform gateway; this service only verifies
// the shared key it is deployed with.
type AuthMiddleware struct {
	apiKey string
}

func NewAuthMiddleware(apiKey string) *AuthMiddleware {
	return &AuthMiddleware{apiKey: apiKey}
}

// Auth validates the X-Api-Key header (or Bearer token) against the
// configured key.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKey == "" {
			response.Error(c, http.StatusServiceUnavailable, "api key not configured", nil)
			return
		}

		key := c.GetHeader("X-Api-Key")
		if key == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if key == "" {
			response.Error(c, http.StatusUnauthorized, "missing api key", nil)
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			response.Error(c, http.StatusUnauthorized, "invalid api key", nil)
			return
		}

		c.Next()
	}
}

// Actor returns the administrator identity for audit entries, from the
// X-Admin-Id header the gateway forwards.
func Actor(c *gin.Context) string {
	if id := c.GetHeader("X-Admin-Id"); id != "" {
		return id
	}
	return "unknown-admin"
}
