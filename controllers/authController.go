package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"civicpulse-be/config"
	"civicpulse-be/middlewares"
	"civicpulse-be/models"
	"civicpulse-be/repositories"
	"civicpulse-be/utils"
)

// AuthController implements the identity provider surface: register, login,
// current identity and logout.
type AuthController struct {
	users repositories.UserStore
	cfg   *config.Config
	log   *logrus.Entry
}

// NewAuthController wires the auth endpoints.
func NewAuthController(users repositories.UserStore, cfg *config.Config, log *logrus.Entry) *AuthController {
	return &AuthController{users: users, cfg: cfg, log: log}
}

func userBody(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
}

// Register handles user registration.
func (ctl *AuthController) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	user := &models.User{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Role:     models.RoleUser,
	}
	if err := user.HashPassword(); err != nil {
		ctl.log.WithError(err).Error("failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Something went wrong"})
		return
	}

	if err := ctl.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "User with this email already exists"})
			return
		}
		respondError(c, ctl.log, err)
		return
	}

	respond(c, http.StatusCreated, "User registered successfully", userBody(user))
}

// Login handles user login and sets the auth cookie.
func (ctl *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	user, err := ctl.users.GetByEmail(c.Request.Context(), input.Email)
	if err != nil || !user.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return
	}

	token, err := utils.GenerateToken(user.ID.Hex(), user.Role, ctl.cfg.JWTSecret)
	if err != nil {
		ctl.log.WithError(err).Error("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Something went wrong"})
		return
	}

	domain := ctl.cfg.Domain
	// For production, don't set domain to allow cross-origin cookies
	if ctl.cfg.IsProduction() {
		domain = ""
	}

	cookie := &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		MaxAge:   int((72 * time.Hour).Seconds()),
		Path:     "/",
		Domain:   domain,
		Secure:   ctl.cfg.IsProduction(),
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
	http.SetCookie(c.Writer, cookie)

	respond(c, http.StatusOK, "Logged in successfully", gin.H{
		"token": token,
		"user":  userBody(user),
	})
}

// Me retrieves the authenticated user's information.
func (ctl *AuthController) Me(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	user, err := ctl.users.GetByID(c.Request.Context(), identity.ID)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusOK, "User retrieved successfully", userBody(user))
}

// Logout clears the auth cookie.
func (ctl *AuthController) Logout(c *gin.Context) {
	c.SetCookie("auth_token", "", -1, "/", ctl.cfg.Domain, ctl.cfg.IsProduction(), true)
	respond(c, http.StatusOK, "Logged out successfully", nil)
}
