package utils

import (
	"time"

	"github.com/dgrijalva/jwt-go"

	"civicpulse-be/models"
)

// GenerateToken mints a signed JWT carrying the user id and role.
func GenerateToken(userID string, role models.UserRole, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(time.Hour * 72).Unix(), // Token expires in 72 hours
	})
	return token.SignedString([]byte(secret))
}
