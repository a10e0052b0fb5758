package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/middlewares"
	"civicpulse-be/models"
	"civicpulse-be/repositories"
	"civicpulse-be/services"
	"civicpulse-be/utils"
)

const testJWTSecret = "test-secret"

type apiFixture struct {
	router *gin.Engine
	issues *repositories.MemoryIssueStore
	ledger *repositories.MemoryVoteLedger
	users  *repositories.MemoryUserStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	issues := repositories.NewMemoryIssueStore()
	ledger := repositories.NewMemoryVoteLedger()
	users := repositories.NewMemoryUserStore()
	tx := repositories.NewMemoryTxRunner()

	issueSvc := services.NewIssueService(issues, ledger, users, tx, utils.NewLogNotifier(log), log)
	voteSvc := services.NewVoteService(issues, ledger, tx, log)
	statsSvc := services.NewStatsService(issues, ledger)

	issueCtl := NewIssueController(issueSvc, voteSvc, log)
	statsCtl := NewStatsController(statsSvc, log)

	limiter := middlewares.NewMemoryCounterStore(time.Minute)
	t.Cleanup(limiter.Stop)

	r := gin.New()
	api := r.Group("/api/issues")
	api.GET("", middlewares.OptionalAuth(testJWTSecret), issueCtl.List)
	api.GET("/:id", middlewares.OptionalAuth(testJWTSecret), issueCtl.Get)
	api.POST("",
		middlewares.RequireAuth(testJWTSecret),
		middlewares.RateLimit(limiter, 3, time.Minute),
		issueCtl.Create,
	)
	api.PATCH("/:id/status", middlewares.RequireAuth(testJWTSecret), middlewares.RequireAdmin(), issueCtl.UpdateStatus)
	api.DELETE("/:id", middlewares.RequireAuth(testJWTSecret), issueCtl.Delete)
	api.POST("/:id/vote", middlewares.RequireAuth(testJWTSecret), issueCtl.ToggleVote)
	r.GET("/api/stats", middlewares.OptionalAuth(testJWTSecret), statsCtl.Overview)

	return &apiFixture{router: r, issues: issues, ledger: ledger, users: users}
}

func (f *apiFixture) newUser(t *testing.T, role models.UserRole) (*models.User, string) {
	t.Helper()

	u := &models.User{
		Name:  "Test User",
		Email: fmt.Sprintf("%s@example.com", primitive.NewObjectID().Hex()),
		Role:  role,
	}
	require.NoError(t, f.users.Create(context.Background(), u))

	token, err := utils.GenerateToken(u.ID.Hex(), u.Role, testJWTSecret)
	require.NoError(t, err)
	return u, token
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (f *apiFixture) seedIssue(t *testing.T, reporter primitive.ObjectID) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		Title:       "Overflowing bin",
		Description: "The public bin at the park entrance is overflowing",
		Category:    models.Sanitation,
		Location:    models.NewGeoPoint(13.4050, 52.5200),
		Address:     "Park entrance",
		ReportedBy:  reporter,
	}
	require.NoError(t, f.issues.Create(context.Background(), issue))
	return issue
}

func TestCreateIssueEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.newUser(t, models.RoleUser)

	w := f.do(http.MethodPost, "/api/issues", token, gin.H{
		"title":       "Pothole on Main Street",
		"description": "A deep pothole is damaging car tires near number 12",
		"category":    "infrastructure",
		"longitude":   13.4050,
		"latitude":    52.5200,
		"address":     "Main Street 12",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	var created struct {
		Status   models.IssueStatus `json:"status"`
		Votes    int64              `json:"votes"`
		HasVoted bool               `json:"hasVoted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, models.Pending, created.Status)
	assert.Zero(t, created.Votes)
	assert.False(t, created.HasVoted)
}

func TestCreateIssueRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/issues", "", gin.H{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateIssueValidationErrors(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.newUser(t, models.RoleUser)

	w := f.do(http.MethodPost, "/api/issues", token, gin.H{
		"title":       "Hm",
		"description": "A deep pothole is damaging car tires near number 12",
		"category":    "infrastructure",
		"longitude":   13.4050,
		"latitude":    52.5200,
		"address":     "Main Street 12",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title")
}

func TestCreateIssueRateLimited(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.newUser(t, models.RoleUser)

	payload := gin.H{
		"title":       "Pothole on Main Street",
		"description": "A deep pothole is damaging car tires near number 12",
		"category":    "infrastructure",
		"longitude":   13.4050,
		"latitude":    52.5200,
		"address":     "Main Street 12",
	}
	for i := 0; i < 3; i++ {
		w := f.do(http.MethodPost, "/api/issues", token, payload)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(http.MethodPost, "/api/issues", token, payload)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestToggleVoteEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.newUser(t, models.RoleUser)
	issue := f.seedIssue(t, primitive.NewObjectID())

	path := "/api/issues/" + issue.ID.Hex() + "/vote"

	w := f.do(http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	var result struct {
		IssueID  string `json:"issueId"`
		Votes    int64  `json:"votes"`
		HasVoted bool   `json:"hasVoted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, issue.ID.Hex(), result.IssueID)
	assert.EqualValues(t, 1, result.Votes)
	assert.True(t, result.HasVoted)

	// Second toggle takes the vote back.
	w = f.do(http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.EqualValues(t, 0, result.Votes)
	assert.False(t, result.HasVoted)
}

func TestToggleVoteRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.seedIssue(t, primitive.NewObjectID())

	w := f.do(http.MethodPost, "/api/issues/"+issue.ID.Hex()+"/vote", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToggleVoteUnknownIssue(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.newUser(t, models.RoleUser)

	w := f.do(http.MethodPost, "/api/issues/"+primitive.NewObjectID().Hex()+"/vote", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIssueReportsCallerVoteState(t *testing.T) {
	f := newAPIFixture(t)
	voter, token := f.newUser(t, models.RoleUser)
	issue := f.seedIssue(t, primitive.NewObjectID())

	require.NoError(t, f.issues.ApplyVote(context.Background(), issue.ID, voter.ID, +1))
	_, err := f.ledger.Insert(context.Background(), voter.ID, issue.ID)
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/api/issues/"+issue.ID.Hex(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hasVoted":true`)

	// An anonymous caller sees the same issue without a vote state.
	w = f.do(http.MethodGet, "/api/issues/"+issue.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hasVoted":false`)
}

func TestUpdateStatusEndpointAdminOnly(t *testing.T) {
	f := newAPIFixture(t)
	reporter, userToken := f.newUser(t, models.RoleUser)
	_, adminToken := f.newUser(t, models.RoleAdmin)
	issue := f.seedIssue(t, reporter.ID)

	path := "/api/issues/" + issue.ID.Hex() + "/status"

	w := f.do(http.MethodPatch, path, userToken, gin.H{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPatch, path, adminToken, gin.H{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"resolved"`)
}

func TestDeleteEndpointCascadesAndScopes(t *testing.T) {
	f := newAPIFixture(t)
	reporter, reporterToken := f.newUser(t, models.RoleUser)
	_, strangerToken := f.newUser(t, models.RoleUser)
	issue := f.seedIssue(t, reporter.ID)

	_, err := f.ledger.Insert(context.Background(), primitive.NewObjectID(), issue.ID)
	require.NoError(t, err)

	path := "/api/issues/" + issue.ID.Hex()

	w := f.do(http.MethodDelete, path, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodDelete, path, reporterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	left, err := f.ledger.CountByIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestListEndpointPagination(t *testing.T) {
	f := newAPIFixture(t)
	reporter := primitive.NewObjectID()
	for i := 0; i < 12; i++ {
		f.seedIssue(t, reporter)
	}

	w := f.do(http.MethodGet, "/api/issues?page=2&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	var data struct {
		Issues     []json.RawMessage       `json:"issues"`
		Pagination repositories.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Len(t, data.Issues, 5)
	assert.Equal(t, 2, data.Pagination.CurrentPage)
	assert.Equal(t, 3, data.Pagination.TotalPages)
	assert.EqualValues(t, 12, data.Pagination.TotalItems)
	assert.True(t, data.Pagination.HasNextPage)
	assert.True(t, data.Pagination.HasPrevPage)
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	reporter := primitive.NewObjectID()
	issue := f.seedIssue(t, reporter)

	_, err := f.ledger.Insert(context.Background(), primitive.NewObjectID(), issue.ID)
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	var stats services.Overview
	require.NoError(t, json.Unmarshal(env.Data, &stats))

	assert.EqualValues(t, 1, stats.TotalIssues)
	assert.EqualValues(t, 1, stats.PendingIssues)
	assert.EqualValues(t, 1, stats.TotalVotes)
}
