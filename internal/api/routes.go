package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crowdradar/internal/api/handlers"
	"crowdradar/internal/api/middleware"
	"crowdradar/internal/auth"
)

type Router struct {
	verifier        auth.Verifier
	requestTimeout  time.Duration
	deviceHandler   *handlers.DeviceHandler
	locationHandler *handlers.LocationHandler
}

func NewRouter(
	verifier auth.Verifier,
	requestTimeout time.Duration,
	deviceHandler *handlers.DeviceHandler,
	locationHandler *handlers.LocationHandler,
) *Router {
	return &Router{
		verifier:        verifier,
		requestTimeout:  requestTimeout,
		deviceHandler:   deviceHandler,
		locationHandler: locationHandler,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.RequestID())

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Every /v1 route needs a verified caller.
	v1 := engine.Group("/v1")
	v1.Use(middleware.Auth(r.verifier), middleware.Timeout(r.requestTimeout))
	{
		location := v1.Group("/location")
		{
			location.POST("/devices", r.deviceHandler.RegisterDevice)
			location.PUT("/sharing", r.locationHandler.SetSharing)
			location.GET("/status", r.locationHandler.GetStatus)
			location.POST("/ping", r.locationHandler.Ping)
			location.GET("/nearby", r.locationHandler.Nearby)
		}
	}
}
