package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/middleware"
	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/repository"
	"github.com/strumline/guitar-crm-api/internal/service"
)

type fakeLessonStatsRepo struct {
	stats []models.StudentLessonStats
}

func (f *fakeLessonStatsRepo) StatsForTeacher(ctx context.Context, vis repository.Visibility, since time.Time) ([]models.StudentLessonStats, error) {
	return f.stats, nil
}

type fakeAssignmentStatsRepo struct {
	stats map[string]models.StudentAssignmentStats
}

func (f *fakeAssignmentStatsRepo) StatsByStudent(ctx context.Context, vis repository.Visibility) (map[string]models.StudentAssignmentStats, error) {
	return f.stats, nil
}

func TestHealthHandlerDashboardUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewHealthService(&fakeLessonStatsRepo{}, &fakeAssignmentStatsRepo{}, nil, time.Minute, zap.NewNop())
	handler := NewHealthHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/health", nil)

	handler.Dashboard(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthHandlerDashboardSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recent := time.Now().UTC().AddDate(0, 0, -4)
	lessons := &fakeLessonStatsRepo{stats: []models.StudentLessonStats{
		{StudentID: "s1", StudentName: "Alice", StudentEmail: "alice@example.com", TotalCompleted: 25, Last30Days: 4, LastLessonAt: &recent},
		{StudentID: "s2", StudentName: "Bob", StudentEmail: "bob@example.com"},
	}}
	assignments := &fakeAssignmentStatsRepo{stats: map[string]models.StudentAssignmentStats{
		"s2": {StudentID: "s2", Total: 3, Completed: 0, Overdue: 2},
	}}
	svc := service.NewHealthService(lessons, assignments, nil, time.Minute, zap.NewNop())
	handler := NewHealthHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/health", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", IsTeacher: true})

	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []models.StudentHealthSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "s2", envelope.Data[0].StudentID)
	assert.Equal(t, models.HealthCritical, envelope.Data[0].Status)
	assert.Equal(t, 2, envelope.Data[0].OverdueAssignments)
}
