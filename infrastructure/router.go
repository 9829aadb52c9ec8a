// infrastructure/router.go
package infrastructure

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type RouterDeps struct {
	Handlers  *VideoHandlers
	Metrics   *Metrics
	Gatherer  prometheus.Gatherer
	JWTSecret []byte
	Checks    []HealthCheck
	Logger    logrus.FieldLogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(deps.Logger), deps.Metrics.Middleware())

	router.GET("/health", HealthHandler(deps.Checks...))
	router.GET("/metrics", MetricsHandler(deps.Gatherer))

	videos := router.Group("/api/v1/videos")
	videos.Use(OwnerMiddleware(deps.JWTSecret))
	{
		videos.GET("", deps.Handlers.ListVideosHandler)
		videos.GET("/:id", deps.Handlers.GetVideoHandler)
		videos.POST("", deps.Handlers.UploadVideoHandler)
		videos.POST("/:id/retry", deps.Handlers.RetryVideoHandler)
		videos.DELETE("/:id", deps.Handlers.DeleteVideoHandler)
	}

	return router
}
