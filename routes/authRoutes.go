package routes

import (
	"github.com/gin-gonic/gin"

	"civicpulse-be/config"
	"civicpulse-be/controllers"
	"civicpulse-be/middlewares"
)

// AuthRoutes sets up the authentication routes.
func AuthRoutes(r *gin.Engine, ctl *controllers.AuthController, cfg *config.Config) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", ctl.Register)
		auth.POST("/login", ctl.Login)
		auth.GET("/me", middlewares.RequireAuth(cfg.JWTSecret), ctl.Me)
		auth.POST("/logout", ctl.Logout)
	}
}
