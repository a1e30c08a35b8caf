package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"storefront-checkout/internal/metrics"
)

type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
}

func NewRouter(
	cfg RouterConfig,
	checkout *CheckoutHandler,
	orders *OrderHandler,
	health *HealthHandler,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(LoggerMiddleware(logger))
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", health.Health)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.Use(SessionMiddleware(logger))
	{
		api.POST("/checkout", checkout.PlaceOrder)
		api.GET("/checkout/pending", checkout.Pending)
		api.DELETE("/checkout/pending", checkout.ClearPending)
		api.GET("/checkout/return", checkout.Return)

		api.POST("/orders", orders.CreateOrder)
		api.GET("/orders", orders.ListOrders)
		api.GET("/orders/:id", orders.GetOrder)
	}

	return router
}
