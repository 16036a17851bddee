package middleware

import (
	"context"
	"strings"

	"businesspilot/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// BusinessIDKey is the gin context key holding the authenticated tenant.
	BusinessIDKey = "business_id"
)

// Authenticator resolves an API key pair to the owning business.
type Authenticator interface {
	Authenticate(ctx context.Context, keyID, secret string) (businessID int64, err error)
}

// APIKeyAuth validates `Authorization: Bearer <key_id>.<secret>` headers and
// stores the resolved business on the request context.
func APIKeyAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(errutil.StatusUnauthorized.HTTPStatus(), gin.H{
				"error": gin.H{"code": errutil.StatusUnauthorized, "message": "missing bearer token"},
			})
			return
		}

		keyID, secret, ok := strings.Cut(token, ".")
		if !ok {
			c.AbortWithStatusJSON(errutil.StatusUnauthorized.HTTPStatus(), gin.H{
				"error": gin.H{"code": errutil.StatusUnauthorized, "message": "malformed bearer token"},
			})
			return
		}

		businessID, err := auth.Authenticate(c.Request.Context(), keyID, secret)
		if err != nil {
			zap.L().Warn("api key authentication failed", zap.String("key_id", keyID))
			c.AbortWithStatusJSON(errutil.StatusUnauthorized.HTTPStatus(), gin.H{
				"error": gin.H{"code": errutil.StatusUnauthorized, "message": "invalid api key"},
			})
			return
		}

		c.Set(BusinessIDKey, businessID)
		c.Next()
	}
}
