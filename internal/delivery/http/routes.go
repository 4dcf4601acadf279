package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/1v1expert/AnalogPro/config"
)

// SetupRouter creates and configures the Gin router. /metrics is served
// only when gatherer is non-nil.
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		analogs := v1.Group("/analogs")
		{
			analogs.POST("/resolve", handler.ResolveAnalog)
			analogs.POST("/search", handler.SearchAnalog)
		}

		products := v1.Group("/products")
		{
			products.GET("", handler.FindProduct)
			products.GET("/:id/analogs", handler.ListCachedAnalogs)
		}

		v1.POST("/healthcheck", handler.RunHealthCheck)
	}

	return router
}
