package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"smartride/internal/handler"
	"smartride/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler        *handler.TripHandler
	ReservationHandler *handler.ReservationHandler
	AuthHandler        *handler.AuthHandler
	Authenticator      middleware.Authenticator
	RedisClient        *redis.Client
	NewRelicApp        *newrelic.Application
	Gatherer           prometheus.Gatherer
	Logger             *logrus.Logger
	AllowedOrigins     []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Authenticated routes resolve the caller before idempotency replay so
	// stored responses are scoped per caller.
	authenticated := []gin.HandlerFunc{
		middleware.AuthMiddleware(deps.Authenticator),
		middleware.NewRelicActorMiddleware(),
		middleware.IdempotencyMiddleware(deps.RedisClient),
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Auth routes.
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", deps.AuthHandler.Register)
			authGroup.POST("/login", deps.AuthHandler.Login)

			private := authGroup.Group("", authenticated...)
			private.GET("/verify", deps.AuthHandler.Verify)
			private.POST("/logout", deps.AuthHandler.Logout)
		}

		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.GET("", deps.TripHandler.ListTrips)
			trips.GET("/summary", deps.TripHandler.Summary)
			trips.GET("/:id", deps.TripHandler.GetTrip)

			private := trips.Group("", authenticated...)
			private.GET("/mine", deps.TripHandler.ListMine)
			private.GET("/reservations/mine", deps.ReservationHandler.ListMine)
			private.POST("", deps.TripHandler.CreateTrip)
			private.PUT("/:id", deps.TripHandler.UpdateTrip)
			private.DELETE("/:id", deps.TripHandler.DeleteTrip)

			// Reservation routes.
			private.POST("/:id/reservations", deps.ReservationHandler.Book)
			private.PUT("/:id/reservations/:reservationId", deps.ReservationHandler.Modify)
			private.DELETE("/:id/reservations/:reservationId", deps.ReservationHandler.Cancel)
		}
	}

	return router
}
