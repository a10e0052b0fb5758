package routes

import (
	"github.com/gin-gonic/gin"

	"civicpulse-be/config"
	"civicpulse-be/controllers"
	"civicpulse-be/middlewares"
)

// StatsRoutes sets up the aggregation endpoint.
func StatsRoutes(r *gin.Engine, ctl *controllers.StatsController, cfg *config.Config) {
	stats := r.Group("/api/stats")
	{
		stats.GET("", middlewares.OptionalAuth(cfg.JWTSecret), ctl.Overview)
	}
}
