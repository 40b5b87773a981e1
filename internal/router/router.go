package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"relayer-backend/internal/config"
	"relayer-backend/internal/handlers"
	"relayer-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware CORS middleware
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowedOrigin := range allowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter builds the gin engine with all routes attached
func SetupRouter(
	swapHandler *handlers.SwapHandler,
	resolverHandler *handlers.ResolverHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WebSocketHandler,
) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware())

	logger := logrus.New()
	var allowedIPs []string
	if config.AppConfig != nil && len(config.AppConfig.Admin.AllowedIPs) > 0 {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
		logger.WithFields(logrus.Fields{
			"allowed_ips": allowedIPs,
			"count":       len(allowedIPs),
		}).Info("Admin API IP whitelist configured")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// ============ Liveness ============
	r.GET("/ping", handlers.PingHandler)

	// ============ Health Check ============
	// Support both /health and /api/health for compatibility
	r.GET("/health", handlers.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ API Routes ============
	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheckHandler)

		// User endpoints
		api.POST("/create-swap", swapHandler.CreateSwap)
		api.GET("/order-status/:id", swapHandler.OrderStatus)
		api.GET("/active-orders", swapHandler.ActiveOrders)

		// Resolver endpoints
		api.POST("/commit-resolver", resolverHandler.CommitResolver)
		api.POST("/resolver-update", resolverHandler.ResolverUpdate)
		api.POST("/trade-complete", resolverHandler.TradeComplete)
		api.GET("/order-secret/:id", resolverHandler.OrderSecret)

		// Real-time order status stream
		api.GET("/ws/order-status/:id", wsHandler.HandleOrderStatus)

		// Admin endpoints: IP whitelist plus JWT
		admin := api.Group("/admin", localhostOnly.Restrict(), adminAuth.RequireAdminAuth())
		{
			admin.GET("/orders", adminHandler.ListOrders)
			admin.GET("/penalties", adminHandler.ListPenalties)
			admin.POST("/rescue-sweep", adminHandler.TriggerSweep)
		}
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path

		if len(path) >= 4 && path[:4] != "/api" {
			c.JSON(http.StatusNotFound, gin.H{
				"message":    "Endpoint not found",
				"path":       path,
				"suggestion": "Check /api endpoints for available APIs",
			})
			return
		}

		c.JSON(http.StatusNotFound, gin.H{
			"message": "API endpoint not found",
			"path":    path,
		})
	})

	return r
}
