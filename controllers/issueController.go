package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/middlewares"
	"civicpulse-be/models"
	"civicpulse-be/repositories"
	"civicpulse-be/services"
)

// IssueController exposes the issue lifecycle and voting endpoints.
type IssueController struct {
	issues *services.IssueService
	votes  *services.VoteService
	log    *logrus.Entry
}

// NewIssueController wires the issue endpoints.
func NewIssueController(issues *services.IssueService, votes *services.VoteService, log *logrus.Entry) *IssueController {
	return &IssueController{issues: issues, votes: votes, log: log}
}

// issueView is an issue plus the caller's vote state.
type issueView struct {
	models.Issue
	HasVoted bool `json:"hasVoted"`
}

func viewFor(issue *models.Issue, identity *services.Identity) issueView {
	v := issueView{Issue: *issue}
	if identity != nil {
		v.HasVoted = issue.HasVoter(identity.ID)
	}
	return v
}

// Create handles the creation of a new issue.
func (ctl *IssueController) Create(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	var input struct {
		Title       string   `json:"title" binding:"required"`
		Description string   `json:"description" binding:"required"`
		Category    string   `json:"category" binding:"required"`
		Priority    string   `json:"priority"`
		Longitude   *float64 `json:"longitude" binding:"required"`
		Latitude    *float64 `json:"latitude" binding:"required"`
		Address     string   `json:"address" binding:"required"`
		Images      []string `json:"images"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	issue, err := ctl.issues.Create(c.Request.Context(), identity.ID, &services.CreateIssueInput{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Priority:    models.IssuePriority(input.Priority),
		Longitude:   *input.Longitude,
		Latitude:    *input.Latitude,
		Address:     input.Address,
		Images:      input.Images,
	})
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}

	respond(c, http.StatusCreated, "Issue created successfully", viewFor(issue, &identity))
}

func parseFilter(c *gin.Context) *repositories.IssueFilter {
	f := &repositories.IssueFilter{
		Search:    c.Query("search"),
		SortBy:    repositories.SortField(c.DefaultQuery("sortBy", "createdAt")),
		SortOrder: repositories.SortOrder(c.DefaultQuery("sortOrder", "desc")),
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	if v := c.Query("status"); v != "" && v != "all" {
		status := models.IssueStatus(v)
		f.Status = &status
	}
	if v := c.Query("category"); v != "" && v != "all" {
		category := models.IssueCategory(v)
		f.Category = &category
	}
	if v := c.Query("priority"); v != "" && v != "all" {
		priority := models.IssuePriority(v)
		f.Priority = &priority
	}

	lngStr, latStr := c.Query("lng"), c.Query("lat")
	if lngStr != "" && latStr != "" {
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		lat, errLat := strconv.ParseFloat(latStr, 64)
		if errLng == nil && errLat == nil {
			radiusKm, err := strconv.ParseFloat(c.DefaultQuery("radiusKm", "5"), 64)
			if err != nil || radiusKm <= 0 {
				radiusKm = 5
			}
			f.Near = &repositories.GeoNear{Lng: lng, Lat: lat, RadiusKm: radiusKm}
		}
	}
	return f
}

// List handles retrieving issues with filtering, sorting and pagination.
func (ctl *IssueController) List(c *gin.Context) {
	f := parseFilter(c)

	var identity *services.Identity
	if id, ok := middlewares.CurrentIdentity(c); ok {
		identity = &id
	}

	issues, pagination, err := ctl.issues.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}

	views := make([]issueView, 0, len(issues))
	for i := range issues {
		views = append(views, viewFor(&issues[i], identity))
	}

	respond(c, http.StatusOK, "Issues retrieved successfully", gin.H{
		"issues":     views,
		"pagination": pagination,
	})
}

// Mine lists the authenticated reporter's own issues.
func (ctl *IssueController) Mine(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	f := parseFilter(c)
	f.ReportedBy = &identity.ID

	issues, pagination, err := ctl.issues.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}

	views := make([]issueView, 0, len(issues))
	for i := range issues {
		views = append(views, viewFor(&issues[i], &identity))
	}

	respond(c, http.StatusOK, "Issues retrieved successfully", gin.H{
		"issues":     views,
		"pagination": pagination,
	})
}

// Nearby returns issues within a radius of a point, closest first.
func (ctl *IssueController) Nearby(c *gin.Context) {
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLng != nil || errLat != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "lng and lat query parameters are required"})
		return
	}
	radiusKm, _ := strconv.ParseFloat(c.DefaultQuery("radiusKm", "5"), 64)

	issues, err := ctl.issues.Nearby(c.Request.Context(), lng, lat, radiusKm)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusOK, "Nearby issues retrieved successfully", gin.H{"issues": issues})
}

// Get retrieves a single issue with the caller's vote state.
func (ctl *IssueController) Get(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid issue ID"})
		return
	}

	issue, err := ctl.issues.Get(c.Request.Context(), issueID)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}

	var identity *services.Identity
	if id, ok := middlewares.CurrentIdentity(c); ok {
		identity = &id
	}
	respond(c, http.StatusOK, "Issue retrieved successfully", viewFor(issue, identity))
}

// Update applies a partial content update by the owner or an administrator.
func (ctl *IssueController) Update(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid issue ID"})
		return
	}

	var input struct {
		Title       *string   `json:"title,omitempty"`
		Description *string   `json:"description,omitempty"`
		Category    *string   `json:"category,omitempty"`
		Priority    *string   `json:"priority,omitempty"`
		Address     *string   `json:"address,omitempty"`
		Longitude   *float64  `json:"longitude,omitempty"`
		Latitude    *float64  `json:"latitude,omitempty"`
		Images      []string  `json:"images,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	patch := &repositories.IssuePatch{
		Title:       input.Title,
		Description: input.Description,
		Address:     input.Address,
		Images:      input.Images,
	}
	if input.Category != nil {
		category := models.IssueCategory(*input.Category)
		patch.Category = &category
	}
	if input.Priority != nil {
		priority := models.IssuePriority(*input.Priority)
		patch.Priority = &priority
	}
	if input.Longitude != nil && input.Latitude != nil {
		point := models.NewGeoPoint(*input.Longitude, *input.Latitude)
		patch.Location = &point
	}

	issue, err := ctl.issues.Update(c.Request.Context(), identity, issueID, patch)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusOK, "Issue updated successfully", viewFor(issue, &identity))
}

// UpdateStatus performs an administrator status transition.
func (ctl *IssueController) UpdateStatus(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid issue ID"})
		return
	}

	var input struct {
		Status     string  `json:"status" binding:"required"`
		AssignedTo *string `json:"assignedTo,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var assignee *primitive.ObjectID
	if input.AssignedTo != nil {
		id, err := primitive.ObjectIDFromHex(*input.AssignedTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid assignee ID"})
			return
		}
		assignee = &id
	}

	issue, err := ctl.issues.UpdateStatus(c.Request.Context(), identity, issueID, models.IssueStatus(input.Status), assignee)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusOK, "Issue status updated successfully", viewFor(issue, &identity))
}

// Delete removes an issue and its votes.
func (ctl *IssueController) Delete(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid issue ID"})
		return
	}

	if err := ctl.issues.Delete(c.Request.Context(), identity, issueID); err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusOK, "Issue deleted successfully", nil)
}

// AddComment appends a comment to an issue.
func (ctl *IssueController) AddComment(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid issue ID"})
		return
	}

	var input struct {
		Text string `json:"text" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	issue, err := ctl.issues.AddComment(c.Request.Context(), identity, issueID, input.Text)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	respond(c, http.StatusCreated, "Comment added successfully", viewFor(issue, &identity))
}

// ToggleVote flips the caller's vote on an issue.
func (ctl *IssueController) ToggleVote(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid issue ID"})
		return
	}

	result, err := ctl.votes.Toggle(c.Request.Context(), identity.ID, issueID)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}

	message := "Vote cast successfully"
	if result.Outcome == services.OutcomeRemoved {
		message = "Vote removed successfully"
	}
	respond(c, http.StatusOK, message, result)
}
