package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/repository"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
)

type stubHealthLessonRepo struct {
	stats   []models.StudentLessonStats
	lastVis repository.Visibility
	calls   int
}

func (s *stubHealthLessonRepo) StatsForTeacher(ctx context.Context, vis repository.Visibility, since time.Time) ([]models.StudentLessonStats, error) {
	s.lastVis = vis
	s.calls++
	return s.stats, nil
}

type stubHealthAssignmentRepo struct {
	stats map[string]models.StudentAssignmentStats
}

func (s *stubHealthAssignmentRepo) StatsByStudent(ctx context.Context, vis repository.Visibility) (map[string]models.StudentAssignmentStats, error) {
	return s.stats, nil
}

type stubHealthCache struct {
	hit     []models.StudentHealthSummary
	setKey  string
	setData interface{}
}

func (s *stubHealthCache) Get(ctx context.Context, key string, dest interface{}) error {
	if s.hit == nil {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.StudentHealthSummary) = s.hit
	return nil
}

func (s *stubHealthCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.setKey = key
	s.setData = value
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", IsAdmin: true}
}

func TestHealthDashboardRanksWorstFirst(t *testing.T) {
	recent := fixedNow().AddDate(0, 0, -5)
	lessons := &stubHealthLessonRepo{stats: []models.StudentLessonStats{
		{StudentID: "s1", StudentName: "Alice", StudentEmail: "alice@example.com", TotalCompleted: 30, Last30Days: 4, LastLessonAt: &recent},
		{StudentID: "s2", StudentName: "Bob", StudentEmail: "bob@example.com"},
	}}
	assignments := &stubHealthAssignmentRepo{stats: map[string]models.StudentAssignmentStats{
		"s1": {StudentID: "s1", Total: 10, Completed: 9, Overdue: 0},
		"s2": {StudentID: "s2", Total: 4, Completed: 0, Overdue: 3},
	}}
	svc := NewHealthService(lessons, assignments, nil, time.Minute, zap.NewNop())
	svc.now = fixedNow

	summaries, err := svc.Dashboard(context.Background(), adminClaims())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "s2", summaries[0].StudentID)
	assert.Equal(t, "s1", summaries[1].StudentID)
	assert.Less(t, summaries[0].Score, summaries[1].Score)

	// Never had a lesson: sentinel recency forces the churn override.
	assert.Equal(t, models.NoLessonSentinel, summaries[0].Factors.DaysSinceLastLesson)
	assert.Equal(t, models.HealthCritical, summaries[0].Status)
	assert.Equal(t, 3, summaries[0].OverdueAssignments)
}

func TestHealthDashboardTieBreaksOnName(t *testing.T) {
	lessons := &stubHealthLessonRepo{stats: []models.StudentLessonStats{
		{StudentID: "s2", StudentName: "Zoe", StudentEmail: "zoe@example.com"},
		{StudentID: "s1", StudentName: "Amir", StudentEmail: "amir@example.com"},
	}}
	assignments := &stubHealthAssignmentRepo{stats: map[string]models.StudentAssignmentStats{}}
	svc := NewHealthService(lessons, assignments, nil, time.Minute, zap.NewNop())
	svc.now = fixedNow

	summaries, err := svc.Dashboard(context.Background(), adminClaims())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "Amir", summaries[0].Name)
	assert.Equal(t, "Zoe", summaries[1].Name)
}

func TestHealthDashboardServesFromCache(t *testing.T) {
	lessons := &stubHealthLessonRepo{}
	assignments := &stubHealthAssignmentRepo{}
	cache := &stubHealthCache{hit: []models.StudentHealthSummary{{StudentID: "cached"}}}
	svc := NewHealthService(lessons, assignments, cache, time.Minute, zap.NewNop())
	svc.now = fixedNow

	summaries, err := svc.Dashboard(context.Background(), adminClaims())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "cached", summaries[0].StudentID)
	assert.Zero(t, lessons.calls)
}

func TestHealthDashboardCachesPerScope(t *testing.T) {
	lessons := &stubHealthLessonRepo{}
	assignments := &stubHealthAssignmentRepo{}
	cache := &stubHealthCache{}
	svc := NewHealthService(lessons, assignments, cache, time.Minute, zap.NewNop())
	svc.now = fixedNow

	teacher := &models.JWTClaims{UserID: "t1", IsTeacher: true}
	_, err := svc.Dashboard(context.Background(), teacher)
	require.NoError(t, err)
	assert.Equal(t, "health:teacher_id:t1", cache.setKey)
	assert.Equal(t, "t1", lessons.lastVis.Value)

	_, err = svc.Dashboard(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "health:all", cache.setKey)
}

func TestAtRiskForAppliesThreshold(t *testing.T) {
	recent := fixedNow().AddDate(0, 0, -3)
	lessons := &stubHealthLessonRepo{stats: []models.StudentLessonStats{
		{StudentID: "s1", StudentName: "Alice", StudentEmail: "alice@example.com", TotalCompleted: 40, Last30Days: 5, LastLessonAt: &recent},
		{StudentID: "s2", StudentName: "Bob", StudentEmail: "bob@example.com", Last30Days: 0},
	}}
	assignments := &stubHealthAssignmentRepo{stats: map[string]models.StudentAssignmentStats{
		"s2": {StudentID: "s2", Total: 5, Completed: 0, Overdue: 4},
	}}
	svc := NewHealthService(lessons, assignments, nil, time.Minute, zap.NewNop())
	svc.now = fixedNow

	atRisk, err := svc.AtRiskFor(context.Background(), "t1", 40)
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Equal(t, "s2", atRisk[0].ID)
	assert.Equal(t, 4, atRisk[0].OverdueAssignments)
	assert.Equal(t, "teacher_id", lessons.lastVis.Column)
	assert.Equal(t, "t1", lessons.lastVis.Value)
}
