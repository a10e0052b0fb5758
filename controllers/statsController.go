package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/middlewares"
	"civicpulse-be/services"
)

// StatsController exposes the aggregate dashboard statistics.
type StatsController struct {
	stats *services.StatsService
	log   *logrus.Entry
}

// NewStatsController wires the stats endpoint.
func NewStatsController(stats *services.StatsService, log *logrus.Entry) *StatsController {
	return &StatsController{stats: stats, log: log}
}

// Overview returns the full statistics object. With ?mine=1 the status
// breakdown is scoped to the authenticated reporter.
func (ctl *StatsController) Overview(c *gin.Context) {
	var reportedBy *primitive.ObjectID
	if c.Query("mine") == "1" {
		identity, ok := middlewares.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
			return
		}
		reportedBy = &identity.ID
	}

	overview, err := ctl.stats.Overview(c.Request.Context(), reportedBy)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusOK, "Statistics retrieved successfully", overview)
}
