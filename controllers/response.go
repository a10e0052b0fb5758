package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"civicpulse-be/models"
)

// respond writes the uniform success envelope.
func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondError maps the error taxonomy onto HTTP statuses. Internal error
// text is logged, never returned to the client.
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	if ve, ok := models.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"fields":  ve.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	case errors.Is(err, models.ErrPermission):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "You are not authorized to perform this action"})
	case errors.Is(err, models.ErrTransient):
		log.WithError(err).Warn("transient failure surfaced to client")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Temporarily unavailable, please retry"})
	default:
		log.WithError(err).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Something went wrong"})
	}
}
