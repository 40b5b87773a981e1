package middleware

import (
	"net/http"
	"strings"

	"relayer-backend/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminAuthMiddleware guards operator routes with the bearer token minted
// by the admin token tool
type AdminAuthMiddleware struct {
	logger *logrus.Logger
}

// NewAdminAuthMiddleware creates the middleware
func NewAdminAuthMiddleware(logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{logger: logger}
}

// RequireAdminAuth rejects requests without a valid admin token
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			a.reject(c, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}

		claims, err := handlers.ValidateAdminJWTToken(token)
		if err != nil {
			a.logger.WithField("error", err.Error()).Warn("Admin token rejected")
			a.reject(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if claims.Role != "admin" {
			a.reject(c, http.StatusForbidden, "insufficient permissions")
			return
		}

		c.Set("admin_username", claims.Username)
		c.Set("admin_role", claims.Role)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	return token, found && token != ""
}

func (a *AdminAuthMiddleware) reject(c *gin.Context, status int, reason string) {
	a.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Warn("Admin auth failed - " + reason)

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   reason,
	})
}
