package routes

import (
	"github.com/gin-gonic/gin"

	"civicpulse-be/config"
	"civicpulse-be/controllers"
	"civicpulse-be/middlewares"
)

// IssueRoutes sets up the issue and voting routes.
func IssueRoutes(r *gin.Engine, ctl *controllers.IssueController, cfg *config.Config, limiter middlewares.CounterStore) {
	issues := r.Group("/api/issues")
	{
		issues.GET("", middlewares.OptionalAuth(cfg.JWTSecret), ctl.List)
		issues.GET("/nearby", ctl.Nearby)
		issues.GET("/mine", middlewares.RequireAuth(cfg.JWTSecret), ctl.Mine)
		issues.GET("/:id", middlewares.OptionalAuth(cfg.JWTSecret), ctl.Get)

		issues.POST("",
			middlewares.RequireAuth(cfg.JWTSecret),
			middlewares.RateLimit(limiter, cfg.IssueRateLimit, cfg.IssueRateWindow),
			ctl.Create,
		)
		issues.PATCH("/:id", middlewares.RequireAuth(cfg.JWTSecret), ctl.Update)
		issues.PATCH("/:id/status", middlewares.RequireAuth(cfg.JWTSecret), middlewares.RequireAdmin(), ctl.UpdateStatus)
		issues.DELETE("/:id", middlewares.RequireAuth(cfg.JWTSecret), ctl.Delete)

		issues.POST("/:id/comments", middlewares.RequireAuth(cfg.JWTSecret), ctl.AddComment)
		issues.POST("/:id/vote", middlewares.RequireAuth(cfg.JWTSecret), ctl.ToggleVote)
	}
}
