package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ridetrack/internal/handler"
	"ridetrack/internal/logging"
	"ridetrack/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler *handler.SessionHandler
	QuoteHandler   *handler.QuoteHandler
	PaymentHandler *handler.PaymentHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestMetrics(logging.OrDefault(deps.Logger)))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		v1.POST("/quotes", deps.QuoteHandler.Quote)
		v1.GET("/positions/nearby", deps.QuoteHandler.Nearby)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.Open)
			sessions.GET("/:id", deps.SessionHandler.Get)
			sessions.GET("/:id/route", deps.SessionHandler.Route)
			sessions.GET("/:id/stream", deps.SessionHandler.Stream)
			sessions.POST("/:id/actions/:action", deps.SessionHandler.Act)
			sessions.DELETE("/:id", deps.SessionHandler.Close)
		}

		v1.POST("/ride-requests/:id/convert", deps.SessionHandler.Convert)

		rides := v1.Group("/rides")
		{
			rides.GET("/:id/payment", deps.PaymentHandler.GetPayment)
			rides.POST("/:id/payment/complete", deps.PaymentHandler.CompletePayment)
		}
	}

	return router
}
