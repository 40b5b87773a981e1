package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"relayer-backend/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func adminTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	auth := NewAdminAuthMiddleware(logger)

	r := gin.New()
	r.GET("/admin/ping", auth.RequireAdminAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": c.GetString("admin_username")})
	})
	return r
}

func TestRequireAdminAuthAcceptsValidToken(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "middleware-test-secret")
	r := adminTestRouter(t)

	token, err := handlers.GenerateAdminJWTToken("operator")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "operator")
}

func TestRequireAdminAuthRejectsBadRequests(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "middleware-test-secret")
	r := adminTestRouter(t)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc123",
		"empty token":    "Bearer ",
		"garbage token":  "Bearer not.a.token",
	}
	for name, header := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}
