package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/api/handlers"
	"github.com/kamranshah125/turum/internal/api/middleware"
	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/repository"
)

// Dependencies are the collaborators the HTTP layer passes requests to
type Dependencies struct {
	Queue    handlers.OrderEnqueuer
	Supplier handlers.SupplierDebugger
	Repos    *repository.Repositories
	// Gatherer backs /metrics; nil leaves the route out
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Turum Shopify integration",
			"endpoints": []string{
				"GET /health",
				"GET /metrics",
				"POST /webhooks/storefront/orders",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Storefront orders/create webhook; the /shopify path is kept for existing subscriptions
	orderWebhook := handlers.HandleOrderWebhook(cfg.Shopify, deps.Queue, logger)
	router.POST("/webhooks/storefront/orders", orderWebhook)
	router.POST("/webhooks/shopify/orders", orderWebhook)

	// Debug pass-throughs (admin key required)
	debug := router.Group("/debug")
	debug.Use(middleware.AdminKeyMiddleware(cfg.Admin.APIKeyHash, logger))
	{
		debug.GET("/turum-auth", handlers.HandleTurumAuth(deps.Supplier, logger))
		debug.GET("/turum-product/:sku", handlers.HandleTurumProduct(deps.Supplier, logger))
		debug.GET("/get_all", handlers.HandleTurumCatalog(deps.Supplier, logger))
		if deps.Repos != nil {
			debug.GET("/reservations", handlers.HandleListReservations(deps.Repos.IntegrationOrder, logger))
			debug.GET("/db-mapping/:sku", handlers.HandleVariantMapping(deps.Repos.VariantMap, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
