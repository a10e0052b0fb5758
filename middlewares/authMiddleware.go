package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
	"civicpulse-be/services"
)

const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie("auth_token"); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.Request.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

// RequireAuth validates the JWT and stores the caller's identity on the
// request context.
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No authorization token provided"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid authorization token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			c.Abort()
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			c.Abort()
			return
		}

		role := string(models.RoleUser)
		if r, ok := claims["role"].(string); ok && r != "" {
			role = r
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

// OptionalAuth populates the identity when a valid token is present but does
// not reject anonymous requests. Listing endpoints use it to report hasVoted.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.Next()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if userID, ok := claims["user_id"].(string); ok {
				c.Set(ctxUserID, userID)
				if r, ok := claims["role"].(string); ok && r != "" {
					c.Set(ctxUserRole, r)
				} else {
					c.Set(ctxUserRole, string(models.RoleUser))
				}
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects callers whose identity lacks the admin role. It must
// run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
			c.Abort()
			return
		}
		if !identity.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Administrator role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the authenticated identity set by RequireAuth or
// OptionalAuth, if any.
func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	userIDVal, exists := c.Get(ctxUserID)
	if !exists {
		return services.Identity{}, false
	}
	userID, ok := userIDVal.(string)
	if !ok {
		return services.Identity{}, false
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return services.Identity{}, false
	}

	role := models.RoleUser
	if roleVal, exists := c.Get(ctxUserRole); exists {
		if r, ok := roleVal.(string); ok && r == string(models.RoleAdmin) {
			role = models.RoleAdmin
		}
	}
	return services.Identity{ID: objID, Role: role}, true
}
